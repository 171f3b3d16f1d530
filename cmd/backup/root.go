package backup

import (
	"errors"
	"fmt"
	"io"
	"os"

	cmdUtil "github.com/ValentinKolb/walkv/cmd/util"
	"github.com/ValentinKolb/walkv/lib/backup"
	"github.com/ValentinKolb/walkv/lib/command"
	"github.com/ValentinKolb/walkv/lib/db"
	"github.com/ValentinKolb/walkv/lib/db/engines/ordered"
	"github.com/ValentinKolb/walkv/lib/snapshot"
	"github.com/ValentinKolb/walkv/lib/store/wstore"
	"github.com/ValentinKolb/walkv/lib/wal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// BackupCommands represents the backup command group
	BackupCommands = &cobra.Command{
		Use:   "backup",
		Short: "Create, restore and verify compressed backups of a data directory",
		Long: `Create, restore and verify compressed backups of a data directory.

The commands work on the files directly, the server must not run on the data directory while a backup is created or restored.`,
	}

	createCmd = &cobra.Command{
		Use:   "create [file]",
		Short: "Writes the state of the data directory (snapshot plus WAL) to a backup file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmdUtil.BindCommandFlags(cmd); err != nil {
				return err
			}
			codec, err := backup.ParseCodec(viper.GetString("codec"))
			if err != nil {
				return err
			}

			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			header, entries, err := Create(viper.GetString("data-dir"), f, codec)
			if closeErr := f.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				os.Remove(args[0])
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d entries to %s (%s, %d raw bytes, checksum %016x)\n",
				entries, args[0], header.Codec, header.RawSize, header.Checksum)
			return nil
		},
	}

	restoreCmd = &cobra.Command{
		Use:   "restore [file]",
		Short: "Replaces the state of the data directory with the content of a backup file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmdUtil.BindCommandFlags(cmd); err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			entries, err := Restore(viper.GetString("data-dir"), f, viper.GetBool("force"))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %d entries into %s\n", entries, viper.GetString("data-dir"))
			return nil
		},
	}

	verifyCmd = &cobra.Command{
		Use:   "verify [file]",
		Short: "Checks the checksum and the content of a backup file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			header, entries, err := backup.Verify(f, newDB)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid: version %d, %s, %d raw bytes, %d entries\n",
				args[0], header.Version, header.Codec, header.RawSize, entries)
			return nil
		},
	}
)

func init() {
	cobra.OnInitialize(cmdUtil.InitConfig)

	key := "data-dir"
	BackupCommands.PersistentFlags().String(key, "data", cmdUtil.WrapString("The data directory of the server"))

	key = "codec"
	createCmd.Flags().String(key, backup.CodecZstd.String(), cmdUtil.WrapString("Compression of the backup (none, snappy, zstd, lz4)"))

	key = "force"
	restoreCmd.Flags().Bool(key, false, cmdUtil.WrapString("Overwrite an existing state in the data directory"))

	BackupCommands.AddCommand(createCmd)
	BackupCommands.AddCommand(restoreCmd)
	BackupCommands.AddCommand(verifyCmd)
}

// --------------------------------------------------------------------------
// Backup operations
// --------------------------------------------------------------------------

func newDB() db.KVDB {
	return ordered.NewOrderedDB(nil)
}

// Create loads the snapshot of dataDir, replays the WAL on top of it and
// writes the resulting state as backup to w. The data directory is not
// modified, a torn WAL tail is ignored like on recovery.
func Create(dataDir string, w io.Writer, codec backup.Codec) (backup.Header, int, error) {
	opts := wstore.DefaultOptions(dataDir)
	database := newDB()
	defer database.Close()

	if _, err := snapshot.Load(opts.SnapshotPath(), database); err != nil {
		return backup.Header{}, 0, err
	}
	if _, err := wal.Replay(opts.WALPath(), func(m command.Mutation) {
		db.Apply(database, m)
	}); err != nil {
		return backup.Header{}, 0, err
	}

	header, err := backup.Write(w, database, codec)
	return header, database.Len(), err
}

// Restore replaces the state in dataDir with the backup read from r. The
// backup is verified completely before anything is changed. An existing
// state is only replaced with force.
func Restore(dataDir string, r io.Reader, force bool) (int, error) {
	opts := wstore.DefaultOptions(dataDir)
	database := newDB()
	defer database.Close()

	if _, err := backup.Read(r, database); err != nil {
		return 0, err
	}

	if !force {
		for _, path := range []string{opts.SnapshotPath(), opts.WALPath()} {
			if stat, err := os.Stat(path); err == nil && stat.Size() > 0 {
				return 0, fmt.Errorf("%s already holds a state (%s), use --force to replace it", dataDir, path)
			}
		}
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return 0, err
	}
	// the WAL belongs to the old state and must not be replayed on top of
	// the restored snapshot
	if err := os.Remove(opts.WALPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, err
	}
	if err := snapshot.Write(opts.SnapshotPath(), database); err != nil {
		return 0, err
	}
	return database.Len(), nil
}
