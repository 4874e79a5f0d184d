package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jsphweid/keydrill/exercise"
	"github.com/jsphweid/keydrill/model"
)

func init() {
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <exercise.mid>",
	Short: "Prints the note run of an exercise file",
	Long:  `Prints the note run of an exercise file`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		inspect(args[0])
	},
}

func inspect(path string) {
	parsed, err := exercise.ReadFile(path)
	if err != nil {
		panic("Could not read exercise because: " + err.Error())
	}
	run := exercise.NoteRun(parsed, 0)
	fmt.Printf("%v notes\n", len(run))
	for _, pitch := range run {
		fmt.Printf("%v ", model.PitchName(pitch))
	}
	fmt.Println()
}
