package main

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"secret-evoting/wallet"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage the wallet keystore",
}

var keysNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Generate a new 24 word mnemonic",
	RunE: func(c *cobra.Command, args []string) error {
		mnemonic, err := wallet.NewMnemonic()
		if err != nil {
			return err
		}
		pterm.Warning.Println("Store this mnemonic safely. Anyone holding it controls the wallet.")
		pterm.DefaultBox.Println(mnemonic)
		pterm.Info.Println("Put it in EVOTE_WALLET_MNEMONIC or a file named by EVOTE_WALLET_MNEMONIC_FILE")
		return nil
	},
}

func init() {
	keysCmd.AddCommand(keysNewCmd)
}
