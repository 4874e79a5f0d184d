package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jsphweid/keydrill/constants"
	"github.com/jsphweid/keydrill/device"
	"github.com/jsphweid/keydrill/eartrain"
	"github.com/jsphweid/keydrill/exercise"
	"github.com/jsphweid/keydrill/normalize"
	"github.com/jsphweid/keydrill/notebuf"
	"github.com/jsphweid/keydrill/speech"
	"github.com/jsphweid/keydrill/verify"
)

var (
	echoDevice string
	echoOut    string
	echoNotes  int
	echoSilent bool
)

func init() {
	echoCmd.Flags().StringVar(&echoDevice, "device", "", "MIDI input port name")
	echoCmd.Flags().StringVar(&echoOut, "out", "", "MIDI output port name")
	echoCmd.Flags().IntVar(&echoNotes, "notes", 4, "how many notes of the exercise to use")
	echoCmd.Flags().BoolVar(&echoSilent, "silent", false, "print prompts instead of speaking them")
	rootCmd.AddCommand(echoCmd)
}

var echoCmd = &cobra.Command{
	Use:   "echo <exercise.mid>",
	Short: "Ear training: hear a snippet, play it back",
	Long: `Ear training: plays the opening notes of an exercise file at you,
then listens for them back. Strike the lowest A twice to hear it again.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		echo(args[0])
	},
}

func echo(path string) {
	parsed, err := exercise.ReadFile(path)
	if err != nil {
		panic("Could not read exercise because: " + err.Error())
	}
	ref := exercise.NoteRun(parsed, echoNotes)
	if len(ref) == 0 {
		panic("Exercise file has no notes")
	}

	store := notebuf.New(constants.GetBucketWidth(), constants.GetRetention(), constants.GetRunBreak())
	sess := normalize.NewSession(store)

	lst, err := device.OpenInput(echoDevice)
	if err != nil {
		panic("Could not open MIDI input because: " + err.Error())
	}
	defer lst.Close()

	player, err := device.OpenOutput(echoOut)
	if err != nil {
		panic("Could not open MIDI output because: " + err.Error())
	}
	defer player.Close()

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
	if echoSilent {
		speaker = speech.LogSpeaker{}
	}

	comp := eartrain.New(store)
	speaker.Say("Listen, then play it back.")

	for {
		comp.Reset()
		err := player.PlaySequence(ctx, ref, 400*time.Millisecond, 100*time.Millisecond, comp.Record)
		if err != nil {
			break
		}

		res, err := comp.Listen(ctx, verify.Budget{})
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("echo attempt failed")
			}
			break
		}
		if res.Replay {
			speaker.Say("Here it is again.")
			continue
		}
		speaker.Say(speech.RenderVerdict(res.Verdict))
		if res.Verdict.OK() {
			break
		}
	}

	sess.End(time.Now())
	fmt.Println("Done")
}
