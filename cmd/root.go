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
	"path/filepath"
	"strings"

	"bennypowers.dev/lspc/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "lspc",
	Short: "Broker between an editor and language servers",
	Long: `lspc sits between a text editor and one or more Language Server
Protocol servers. It translates editor commands (hover, goto-definition,
references, formatting, inlay hints) into LSP requests toward the server
covering the file, and translates results and server notifications back
into editor calls.

Language servers are spawned on demand per start_lang_server command and
selected per file by project-root ancestry.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// expandPath expands ~, handles relative and absolute paths
func expandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if path == "~" {
			path = home
		} else if strings.HasPrefix(path, "~/") {
			path = filepath.Join(home, path[2:])
		}
	}
	return filepath.Abs(path)
}

func initConfig() {
	cfgFile := viper.GetString("configFile")
	if cfgFile != "" {
		var err error
		cfgFile, err = expandPath(cfgFile)
		cobra.CheckErr(err)
		viper.SetConfigFile(cfgFile)
	} else {
		cwd, err := os.Getwd()
		cobra.CheckErr(err)
		viper.AddConfigPath(filepath.Join(cwd, ".config"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("lspc")
	}

	if err := viper.ReadInConfig(); err == nil {
		logging.Debug("using config file: %s", viper.ConfigFileUsed())
	}

	if viper.GetBool("verbose") {
		logging.GetLogger().SetDebugEnabled(true)
	}

	viper.AutomaticEnv()
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().String("config", "", "config file (default is $CWD/.config/lspc.yaml)")
	rootCmd.PersistentFlags().String("log-file", "", "log file (default is $XDG_STATE_HOME/lspc/lspc.log)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose logging output")
	viper.BindPFlag("configFile", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("logFile", rootCmd.PersistentFlags().Lookup("log-file"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}
