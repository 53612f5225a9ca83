package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kimsuk/fo-dicom/client"
	"github.com/kimsuk/fo-dicom/dicomerr"
	"github.com/kimsuk/fo-dicom/observability"
	"github.com/kimsuk/fo-dicom/types"
)

var json = jsoniter.ConfigFastest

var (
	verbosity        int
	pretty           bool
	callingAETitle   string
	calledAETitle    string
	messageID        uint16
	repeat           int
	connectTimeout   time.Duration
	maxPDULength     uint32
	abstractSyntaxes []string
	jsonOutput       bool

	logger zerolog.Logger

	rootCmd = &cobra.Command{
		Use:   "echoscu <host:port>",
		Short: "DICOM C-ECHO service class user",
		Long: `echoscu opens an association with a remote SCP, sends C-ECHO requests and
reports the outcome of presentation context negotiation. Extra abstract
syntaxes can be proposed alongside Verification to probe what a PACS would
accept without transferring any data.`,
		Args: cobra.ExactArgs(1),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = observability.NewLogger("echoscu", verbosity, pretty)
		},
		RunE:          runEcho,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", false, "Human readable log output instead of JSON")

	rootCmd.Flags().StringVar(&callingAETitle, "calling", "ECHOSCU", "Calling AE title")
	rootCmd.Flags().StringVar(&calledAETitle, "called", "ANY-SCP", "Called AE title")
	rootCmd.Flags().Uint16Var(&messageID, "message-id", 1, "Message ID of the first C-ECHO request")
	rootCmd.Flags().IntVarP(&repeat, "repeat", "n", 1, "Number of C-ECHO requests to send")
	rootCmd.Flags().DurationVar(&connectTimeout, "timeout", 30*time.Second, "Connection timeout")
	rootCmd.Flags().Uint32Var(&maxPDULength, "max-pdu", 0, "Maximum PDU length to announce (0 uses the default)")
	rootCmd.Flags().StringArrayVar(&abstractSyntaxes, "abstract-syntax", nil, "Additional abstract syntax UID to propose (repeatable)")
	rootCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the report as JSON")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("echoscu version %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

// report is the outcome of one echoscu run, printable as text or JSON.
type report struct {
	Address              string          `json:"address"`
	CallingAETitle       string          `json:"calling_ae_title"`
	CalledAETitle        string          `json:"called_ae_title"`
	AssociationID        string          `json:"association_id"`
	MaxPDULength         uint32          `json:"max_pdu_length"`
	PresentationContexts []contextReport `json:"presentation_contexts"`
	Echoes               []echoReport    `json:"echoes"`
	Succeeded            int             `json:"succeeded"`
	Failed               int             `json:"failed"`
}

type contextReport struct {
	ID             byte   `json:"id"`
	AbstractSyntax string `json:"abstract_syntax"`
	Result         string `json:"result"`
	TransferSyntax string `json:"transfer_syntax,omitempty"`
}

type echoReport struct {
	MessageID uint16 `json:"message_id"`
	Status    string `json:"status,omitempty"`
	RoundTrip string `json:"round_trip"`
	Error     string `json:"error,omitempty"`
}

func runEcho(cmd *cobra.Command, args []string) error {
	if repeat < 1 {
		return fmt.Errorf("--repeat must be at least 1")
	}
	if len(callingAETitle) > 16 {
		return fmt.Errorf("calling AE title %q exceeds 16 characters", callingAETitle)
	}
	if len(calledAETitle) > 16 {
		return fmt.Errorf("called AE title %q exceeds 16 characters", calledAETitle)
	}

	address := args[0]
	assoc, err := client.Connect(address, client.Config{
		CallingAETitle:   callingAETitle,
		CalledAETitle:    calledAETitle,
		MaxPDULength:     maxPDULength,
		ConnectTimeout:   connectTimeout,
		Logger:           observability.Component(logger, "client"),
		AbstractSyntaxes: append([]string{types.VerificationSOPClass}, abstractSyntaxes...),
	})
	if err != nil {
		return err
	}
	defer assoc.Close()

	rep := buildReport(assoc, address)
	for i := 0; i < repeat; i++ {
		id := messageID + uint16(i)
		start := time.Now()
		resp, err := assoc.SendCEcho(id)
		elapsed := time.Since(start).Round(time.Microsecond)

		entry := echoReport{MessageID: id, RoundTrip: elapsed.String()}
		var derr *dicomerr.DIMSEError
		switch {
		case err == nil:
			entry.Status = fmt.Sprintf("0x%04X", resp.Status)
			if resp.Status == types.StatusSuccess {
				rep.Succeeded++
			} else {
				rep.Failed++
			}
		case errors.As(err, &derr):
			// The peer answered; the association survives a status failure.
			entry.Status = fmt.Sprintf("0x%04X", derr.Status)
			entry.Error = err.Error()
			rep.Failed++
		default:
			entry.Error = err.Error()
			rep.Failed++
		}
		rep.Echoes = append(rep.Echoes, entry)

		if err != nil && derr == nil {
			// The association is unusable after a transport failure.
			break
		}
	}

	if jsonOutput {
		out, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	} else {
		printReport(os.Stdout, rep)
	}

	if rep.Succeeded < repeat {
		return fmt.Errorf("%d of %d echoes succeeded", rep.Succeeded, repeat)
	}
	return nil
}

func buildReport(assoc *client.Association, address string) report {
	rep := report{
		Address:        address,
		CallingAETitle: callingAETitle,
		CalledAETitle:  calledAETitle,
		AssociationID:  assoc.ID(),
		MaxPDULength:   assoc.MaxPDULength(),
	}
	for _, pc := range assoc.PresentationContexts() {
		rep.PresentationContexts = append(rep.PresentationContexts, contextReport{
			ID:             pc.ID(),
			AbstractSyntax: pc.AbstractSyntax(),
			Result:         pc.Result().String(),
			TransferSyntax: pc.AcceptedTransferSyntax(),
		})
	}
	return rep
}

func printReport(w io.Writer, rep report) {
	fmt.Fprintf(w, "Associated with %s at %s (max PDU %d)\n", rep.CalledAETitle, rep.Address, rep.MaxPDULength)
	fmt.Fprintln(w, "Presentation contexts:")
	for _, pc := range rep.PresentationContexts {
		line := fmt.Sprintf("  [%2d] %-30s %s", pc.ID, pc.AbstractSyntax, pc.Result)
		if pc.TransferSyntax != "" {
			line += fmt.Sprintf(" (%s)", types.GetTransferSyntaxInfo(pc.TransferSyntax).Name)
		}
		fmt.Fprintln(w, line)
	}
	for _, e := range rep.Echoes {
		if e.Error != "" {
			fmt.Fprintf(w, "C-ECHO %d failed after %s: %s\n", e.MessageID, e.RoundTrip, e.Error)
			continue
		}
		fmt.Fprintf(w, "C-ECHO %d: status %s in %s\n", e.MessageID, e.Status, e.RoundTrip)
	}
	fmt.Fprintf(w, "%d of %d echoes succeeded\n", rep.Succeeded, len(rep.Echoes))
}
