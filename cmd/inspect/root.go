package inspect

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/ValentinKolb/walkv/lib/command"
	"github.com/ValentinKolb/walkv/lib/db/engines/ordered"
	"github.com/ValentinKolb/walkv/lib/snapshot"
	"github.com/ValentinKolb/walkv/lib/wal"
	"github.com/spf13/cobra"
)

var (
	// InspectCommands represents the inspect command group
	InspectCommands = &cobra.Command{
		Use:   "inspect",
		Short: "Inspect the files of a data directory offline",
	}

	walCmd = &cobra.Command{
		Use:   "wal [file]",
		Short: "Lists the frames of a write-ahead log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			stat, err := f.Stat()
			if err != nil {
				return err
			}
			summary, err := ListWAL(cmd.OutOrStdout(), f, stat.Size())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d frames, %d undecodable, %d valid bytes of %d\n",
				summary.Frames, summary.Corrupt, summary.ValidBytes, stat.Size())
			return nil
		},
	}

	snapshotCmd = &cobra.Command{
		Use:   "snapshot [file]",
		Short: "Lists the pairs stored in a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			database := ordered.NewOrderedDB(nil)
			defer database.Close()

			loaded, err := snapshot.Load(args[0], database)
			if err != nil {
				return err
			}
			if !loaded {
				return fmt.Errorf("snapshot %s does not exist", args[0])
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tVALUE")
			for _, p := range database.Dump() {
				fmt.Fprintf(w, "%q\t%q\n", p.Key, p.Value)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d pairs\n", database.Len())
			return nil
		},
	}
)

func init() {
	InspectCommands.AddCommand(walCmd)
	InspectCommands.AddCommand(snapshotCmd)
}

// WALSummary is the result of ListWAL
type WALSummary struct {
	Frames     int   // complete frames
	Corrupt    int   // complete frames that are no mutation
	ValidBytes int64 // offset behind the last complete frame
	TornTail   bool
}

// ListWAL writes one line per frame of the WAL in r to w: offset, size,
// opcode and the decoded command. Frames that will be skipped by replay
// are marked as corrupt. A torn tail ends the listing.
func ListWAL(w io.Writer, r io.Reader, size int64) (WALSummary, error) {
	var summary WALSummary
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OFFSET\tSIZE\tOP\tCOMMAND")

	reader := wal.NewReader(r, size)
	for {
		offset := reader.Offset()
		payload, err := reader.Next()
		if err == io.EOF {
			break
		}
		if errors.Is(err, wal.ErrCorruptRecord) {
			fmt.Fprintf(tw, "%d\t%d\t-\tTORN TAIL: %v\n", offset, size-offset, err)
			summary.TornTail = true
			break
		}
		if err != nil {
			return summary, err
		}

		summary.Frames++
		op := "-"
		if len(payload) > 0 {
			op = command.OpCode(payload[0]).String()
		}
		m, err := command.DecodeMutation(payload)
		if err != nil {
			summary.Corrupt++
			fmt.Fprintf(tw, "%d\t%d\t%s\tCORRUPT: %v\n", offset, wal.HeaderSize+len(payload), op, err)
			continue
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%v\n", offset, wal.HeaderSize+len(payload), op, m)
	}

	summary.ValidBytes = reader.Offset()
	return summary, tw.Flush()
}
