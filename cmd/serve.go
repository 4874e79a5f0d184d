package cmd

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jsphweid/keydrill/constants"
	"github.com/jsphweid/keydrill/device"
	"github.com/jsphweid/keydrill/model"
	"github.com/jsphweid/keydrill/normalize"
	"github.com/jsphweid/keydrill/notebuf"
)

var (
	serveDevice string

	serveStore     *notebuf.Store
	serveSession   *normalize.Session
	serveSessionID string
	serveDeviceUp  string
)

func init() {
	serveCmd.Flags().StringVar(&serveDevice, "device", "", "MIDI input port name")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the live buffer over HTTP",
	Long:  `Serves the live buffer over HTTP: /buffer, /clear, /status`,
	Run: func(cmd *cobra.Command, args []string) {
		serve()
	},
}

// InitServe wires the handlers to a store and session. Split out so tests
// can drive the handlers without a device.
func InitServe(store *notebuf.Store, sess *normalize.Session) {
	serveStore = store
	serveSession = sess
	serveSessionID = uuid.NewString()
}

func HandleBuffer(w http.ResponseWriter, r *http.Request) {
	events := serveStore.Snapshot()
	res := model.BufferResponse{
		SessionID: serveSessionID,
		NumEvents: len(events),
		Notes:     make([]model.BufferedNote, 0, len(events)),
	}
	for _, ev := range events {
		res.Notes = append(res.Notes, model.BufferedNote{
			Pitch:    ev.Pitch,
			Name:     model.PitchName(ev.Pitch),
			Kind:     ev.Kind.String(),
			Velocity: ev.Velocity,
			OffsetMs: ev.Time.Sub(events[0].Time).Milliseconds(),
		})
	}
	json.NewEncoder(w).Encode(res)
}

func HandleClear(w http.ResponseWriter, r *http.Request) {
	serveStore.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func HandleStatus(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(model.StatusResponse{
		SessionID: serveSessionID,
		Connected: serveDeviceUp != "",
		Device:    serveDeviceUp,
		PedalDown: serveSession.PedalDown(),
		NumEvents: serveStore.Len(),
	})
}

func NewRouter() http.Handler {
	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/buffer", HandleBuffer).Methods("GET")
	router.HandleFunc("/clear", HandleClear).Methods("POST")
	router.HandleFunc("/status", HandleStatus).Methods("GET")
	return cors.Default().Handler(router)
}

func serve() {
	store := notebuf.New(constants.GetBucketWidth(), constants.GetRetention(), constants.GetRunBreak())
	sess := normalize.NewSession(store)
	InitServe(store, sess)

	lst, err := device.OpenInput(serveDevice)
	if err != nil {
		panic("Could not open MIDI input because: " + err.Error())
	}
	defer lst.Close()

	err = lst.Listen(sess.Handle, func(err error) {
		log.WithError(err).Error("device stream closed")
		serveDeviceUp = ""
	})
	if err != nil {
		panic("Could not start listener because: " + err.Error())
	}
	serveDeviceUp = lst.Name()

	addr := constants.GetServeAddr()
	log.WithField("addr", addr).Info("serving")
	log.Fatal(http.ListenAndServe(addr, NewRouter()))
}
