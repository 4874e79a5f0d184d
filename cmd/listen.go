package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jsphweid/keydrill/constants"
	"github.com/jsphweid/keydrill/db"
	"github.com/jsphweid/keydrill/device"
	"github.com/jsphweid/keydrill/model"
	"github.com/jsphweid/keydrill/normalize"
	"github.com/jsphweid/keydrill/notebuf"
	"github.com/jsphweid/keydrill/pattern"
	"github.com/jsphweid/keydrill/program"
	"github.com/jsphweid/keydrill/speech"
	"github.com/jsphweid/keydrill/verify"
)

var (
	listenDevice  string
	listenScale   string
	listenDir     string
	listenRetries int
	listenSilent  bool
	listenRecord  bool
)

func init() {
	listenCmd.Flags().StringVar(&listenDevice, "device", "", "MIDI input port name")
	listenCmd.Flags().StringVar(&listenScale, "scale", "major", "scale to drill (major, harmonic-minor)")
	listenCmd.Flags().StringVar(&listenDir, "direction", "up", "up, down, or both")
	listenCmd.Flags().IntVar(&listenRetries, "retries", 1, "retries per step before moving on")
	listenCmd.Flags().BoolVar(&listenSilent, "silent", false, "print prompts instead of speaking them")
	listenCmd.Flags().BoolVar(&listenRecord, "record", false, "record verdicts to DynamoDB")
	rootCmd.AddCommand(listenCmd)
}

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Runs the circle-of-fourths scale drill",
	Long: `Runs the circle-of-fourths scale drill against a live MIDI input.
Console keys: p prints the buffer, n starts a new run, q quits.`,
	Run: func(cmd *cobra.Command, args []string) {
		listen()
	},
}

func parseDirection(s string) pattern.Direction {
	switch s {
	case "down":
		return pattern.Descending
	case "both":
		return pattern.Both
	}
	return pattern.Ascending
}

func listen() {
	store := notebuf.New(constants.GetBucketWidth(), constants.GetRetention(), constants.GetRunBreak())
	sess := normalize.NewSession(store)

	lst, err := device.OpenInput(listenDevice)
	if err != nil {
		panic("Could not open MIDI input because: " + err.Error())
	}
	defer lst.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = lst.Listen(sess.Handle, func(err error) {
		log.WithError(err).Error("device stream closed")
		cancel()
	})
	if err != nil {
		panic("Could not start listener because: " + err.Error())
	}

	var speaker speech.Speaker = speech.SaySpeaker{}
	if listenSilent {
		speaker = speech.LogSpeaker{}
	}

	var recorder program.Recorder
	if listenRecord {
		dbStore, err := db.NewStore()
		if err != nil {
			panic("Could not connect to DynamoDB because: " + err.Error())
		}
		recorder = dbStore
	}

	prog, err := program.CircleOfFourths(listenScale, parseDirection(listenDir), listenRetries)
	if err != nil {
		panic("Unknown scale: " + err.Error())
	}

	go watchConsole(store, cancel)

	it := program.Interpreter{
		Engine:   verify.New(store),
		Speaker:  speaker,
		Recorder: recorder,
	}
	if err := it.Run(ctx, prog); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Println("Session ended")
		} else {
			log.WithError(err).Error("program stopped")
		}
	}
	sess.End(time.Now())
}

// watchConsole drives the three control keys: p (print), n (new run),
// q (quit).
func watchConsole(store *notebuf.Store, cancel context.CancelFunc) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		switch scanner.Text() {
		case "p":
			printBuffer(store)
		case "n":
			store.Clear()
			fmt.Println("new run")
		case "q":
			cancel()
			return
		}
	}
}

func printBuffer(store *notebuf.Store) {
	events := store.Snapshot()
	fmt.Printf("Buffer [ %v events ] [ ", len(events))
	for _, ev := range events {
		fmt.Printf("%v%v ", ev.Kind, model.PitchName(ev.Pitch))
	}
	fmt.Println("]")
}
