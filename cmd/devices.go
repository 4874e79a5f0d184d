package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jsphweid/keydrill/device"
)

func init() {
	rootCmd.AddCommand(devicesCmd)
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Lists MIDI input ports",
	Long:  `Lists MIDI input ports`,
	Run: func(cmd *cobra.Command, args []string) {
		names, err := device.ListInputs()
		if err != nil {
			panic("Could not list inputs because: " + err.Error())
		}
		if len(names) == 0 {
			fmt.Println("No MIDI inputs found")
			return
		}
		for _, name := range names {
			fmt.Println(name)
		}
	},
}
