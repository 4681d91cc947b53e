package cmd

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

var (
	to     []string
	amount []string
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a transaction",
	Run: func(cmd *cobra.Command, args []string) {
		privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
		if err != nil {
			log.Fatal(err)
		}

		txID, err := send(privateKey)
		if err != nil {
			log.Fatal(err)
		}

		fmt.Println("Submitted:", txID)
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringSliceVarP(&to, "to", "t", nil, "Identity of a receiver, repeat for more receivers.")
	sendCmd.Flags().StringSliceVarP(&amount, "amount", "v", nil, "Amount for the matching receiver.")
}

// send builds a transaction from the wallet's unspent outputs, signs it
// locally and submits it to the node.
func send(privateKey *ecdsa.PrivateKey) (string, error) {
	if len(to) == 0 || len(to) != len(amount) {
		return "", errors.New("every receiver needs an amount")
	}

	receivers := make([]signature.Identity, len(to))
	amounts := make([]decimal.Decimal, len(to))
	total := database.TransactionFee
	for i := range to {
		id, err := signature.ToIdentity(to[i])
		if err != nil {
			return "", fmt.Errorf("receiver %d: %w", i, err)
		}

		amt, err := decimal.NewFromString(amount[i])
		if err != nil {
			return "", fmt.Errorf("amount %d: %w", i, err)
		}

		receivers[i] = id
		amounts[i] = amt
		total = total.Add(amt)
	}

	sender := signature.PublicKeyToIdentity(privateKey.PublicKey)

	resp, err := http.Get(fmt.Sprintf("%s/v1/utxos/list/%s", url, sender))
	if err != nil {
		return "", err
	}

	body, err := read(resp)
	if err != nil {
		return "", err
	}

	var unspent []database.UTXO
	if err := json.Unmarshal([]byte(gjson.GetBytes(body, "unspent").Raw), &unspent); err != nil {
		return "", fmt.Errorf("decode unspent: %w", err)
	}

	// Take outputs in the order the node returned them until the amounts
	// and the fee are covered.
	var inputs []database.UTXO
	covered := decimal.Zero
	for _, utxo := range unspent {
		if covered.GreaterThanOrEqual(total) {
			break
		}
		inputs = append(inputs, utxo)
		covered = covered.Add(utxo.Amount)
	}

	tx := database.NewTx(sender, receivers, amounts, inputs)
	if err := tx.PrepareOutputs(); err != nil {
		return "", err
	}

	if err := tx.Sign(privateKey); err != nil {
		return "", err
	}

	data, err := json.Marshal(tx)
	if err != nil {
		return "", err
	}

	resp, err = http.Post(fmt.Sprintf("%s/v1/tx/submit", url), "application/json", bytes.NewBuffer(data))
	if err != nil {
		return "", err
	}

	body, err = read(resp)
	if err != nil {
		return "", err
	}

	return gjson.GetBytes(body, "tx_id").String(), nil
}
