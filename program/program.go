// Package program sequences drills. A program is plain data -- an ordered
// list of steps, each a pattern plus a prompt and a retry policy -- and
// the interpreter walks it, speaking prompts and feeding verdicts back.
package program

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/jsphweid/keydrill/model"
	"github.com/jsphweid/keydrill/pattern"
	"github.com/jsphweid/keydrill/speech"
	"github.com/jsphweid/keydrill/verify"
)

type Step struct {
	Name    string
	Pattern pattern.Pattern
	Prompt  string
	Retries int
	Budget  verify.Budget
}

type Program struct {
	Name  string
	Steps []Step
}

// Recorder receives every settled verdict. The db layer implements it;
// nil means don't keep history.
type Recorder interface {
	Record(program, step string, v model.Verdict)
}

type Interpreter struct {
	Engine   *verify.Engine
	Speaker  speech.Speaker
	Recorder Recorder
}

// Run walks the program step by step. A mismatch or timeout retries the
// step until its retry budget runs out, then moves on. Cancellation stops
// immediately and surfaces the context error.
func (it *Interpreter) Run(ctx context.Context, prog Program) error {
	logger := log.WithField("program", prog.Name)
	for _, step := range prog.Steps {
		logger.WithField("step", step.Name).Info("starting step")

		attempts := step.Retries + 1
		for try := 0; try < attempts; try++ {
			if try == 0 {
				it.Speaker.Say(step.Prompt)
			} else {
				it.Speaker.Say("One more time. " + step.Prompt)
			}

			verdict, err := it.Engine.Listen(ctx, step.Pattern, step.Budget)
			if err != nil {
				return err
			}
			if it.Recorder != nil {
				it.Recorder.Record(prog.Name, step.Name, verdict)
			}
			it.Speaker.Say(speech.RenderVerdict(verdict))
			if verdict.OK() {
				break
			}
		}
	}
	it.Speaker.Say("That's the whole program. Good work.")
	return nil
}

// circle-of-fourths pitch classes starting from C.
var fourths = []int{0, 5, 10, 3, 8, 1, 6, 11, 4, 9, 2, 7}

// CircleOfFourths drills the named scale in every key, moving by fourths,
// roots kept near middle C.
func CircleOfFourths(scaleName string, dir pattern.Direction, retries int) (Program, error) {
	var steps []Step
	for _, pc := range fourths {
		root := uint8(60 + pc)
		if pc > 6 {
			root -= 12
		}
		p, err := pattern.Scale(scaleName, root, dir)
		if err != nil {
			return Program{}, err
		}
		letter := speech.Pronounce(model.NoteLetter(root))
		steps = append(steps, Step{
			Name:    p.Name,
			Pattern: p,
			Prompt:  fmt.Sprintf("Play the %s %s scale.", letter, scaleName),
			Retries: retries,
		})
	}
	return Program{
		Name:  fmt.Sprintf("circle-of-fourths %s", scaleName),
		Steps: steps,
	}, nil
}
