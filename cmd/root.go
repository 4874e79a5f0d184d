package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "keydrill",
	Short: "Screen-free piano practice drills over live MIDI",
	Long: `keydrill listens to a MIDI piano, calls out drills, and tells you
whether you actually played them.`,
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}
