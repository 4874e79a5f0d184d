package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jsphweid/keydrill/db"
)

var reportProgram string

func init() {
	reportCmd.Flags().StringVar(&reportProgram, "program", "", "only this program")
	rootCmd.AddCommand(reportCmd)
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarizes recorded practice results",
	Long:  `Summarizes recorded practice results`,
	Run: func(cmd *cobra.Command, args []string) {
		report()
	},
}

type stepTally struct {
	attempts int
	matched  int
}

func report() {
	store, err := db.NewStore()
	if err != nil {
		panic("Could not connect to DynamoDB because: " + err.Error())
	}
	results, err := store.GetResults(reportProgram)
	if err != nil {
		panic("Could not fetch results because: " + err.Error())
	}

	byStep := make(map[string]*stepTally)
	byVerdict := make(map[string]int)
	for _, r := range results {
		t := byStep[r.Step]
		if t == nil {
			t = &stepTally{}
			byStep[r.Step] = t
		}
		t.attempts++
		if r.Verdict == "Matched" {
			t.matched++
		}
		byVerdict[r.Verdict]++
	}

	fmt.Printf("total attempts: %v\n", len(results))
	for _, v := range []string{"Matched", "Mismatch", "Incomplete", "TimedOut"} {
		if byVerdict[v] > 0 {
			fmt.Printf("  %v: %v\n", v, byVerdict[v])
		}
	}

	steps := make([]string, 0, len(byStep))
	for s := range byStep {
		steps = append(steps, s)
	}
	sort.Strings(steps)
	fmt.Println("per step:")
	for _, s := range steps {
		t := byStep[s]
		fmt.Printf("  %v: %v/%v matched\n", s, t.matched, t.attempts)
	}
}
