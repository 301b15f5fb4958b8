/*
Copyright © 2025 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/
package cmd

import (
	"os"

	"bennypowers.dev/lspc/internal/logging"
	"bennypowers.dev/lspc/lspc"
	"bennypowers.dev/lspc/nvim"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// nvimCmd represents the nvim command
var nvimCmd = &cobra.Command{
	Use:   "nvim",
	Short: "Attach the broker to the parent Neovim over stdio",
	Long: `Run the broker as a msgpack-rpc child of Neovim. Neovim starts it
with jobstart() and talks over stdin/stdout; editor commands arrive as
notifications and language server results are pushed back as API calls.

Per-language server defaults may be configured under the servers key of
.config/lspc.yaml and are overridden by the start_lang_server payload.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// stdout carries the msgpack-rpc stream; all logging goes to a file
		if err := logging.GetLogger().SetFileMode(viper.GetString("logFile")); err != nil {
			return err
		}

		editor := nvim.New(os.Stdin, os.Stdout)
		broker := lspc.New(editor)
		return broker.Run()
	},
}

func init() {
	rootCmd.AddCommand(nvimCmd)
}
