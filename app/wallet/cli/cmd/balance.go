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

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print your balance.",
	Run:   balanceRun,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}

func balanceRun(cmd *cobra.Command, args []string) {
	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		log.Fatal(err)
	}

	id := signature.PublicKeyToIdentity(privateKey.PublicKey)
	fmt.Println("For Identity:", id)

	resp, err := http.Get(fmt.Sprintf("%s/v1/balances/list/%s", url, id))
	if err != nil {
		log.Fatal(err)
	}

	body, err := read(resp)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("Balance:", gjson.GetBytes(body, "balances.0.balance").String())
	fmt.Println("Uncommitted:", gjson.GetBytes(body, "uncommitted").Int())
}
