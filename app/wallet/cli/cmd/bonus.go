package cmd

import (
	"fmt"
	"log"
	"net/http"

	"github.com/ardanlabs/utxochain/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

var privateURL string

var bonusCmd = &cobra.Command{
	Use:   "bonus",
	Short: "Ask the genesis node for the sign-in bonus.",
	Run:   bonusRun,
}

func init() {
	rootCmd.AddCommand(bonusCmd)
	bonusCmd.Flags().StringVarP(&privateURL, "node-url", "n", "http://localhost:9080", "Url of the genesis node's private api.")
}

func bonusRun(cmd *cobra.Command, args []string) {
	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		log.Fatal(err)
	}

	id := signature.PublicKeyToIdentity(privateKey.PublicKey)

	resp, err := http.Post(fmt.Sprintf("%s/v1/node/bonus/%s", privateURL, id), "application/json", nil)
	if err != nil {
		log.Fatal(err)
	}

	body, err := read(resp)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("Bonus:", gjson.GetBytes(body, "tx_id").String())
}
