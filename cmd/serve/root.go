package serve

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cmdUtil "github.com/ValentinKolb/walkv/cmd/util"
	"github.com/ValentinKolb/walkv/lib/store/wstore"
	"github.com/ValentinKolb/walkv/rpc/common"
	"github.com/ValentinKolb/walkv/rpc/server"
	"github.com/ValentinKolb/walkv/rpc/transport"
	"github.com/ValentinKolb/walkv/rpc/transport/http"
	"github.com/ValentinKolb/walkv/rpc/transport/tcp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:   "serve",
		Short: "Start the walkv server",
		Long: `Start the walkv server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is WALKV_<flag> (e.g. WALKV_DATA_DIR=/var/lib/walkv)

Every mutation is appended to the write-ahead log and flushed before it is applied and acknowledged. The server stops on the shutdown command, SIGINT or SIGTERM, in all cases after every accepted mutation is durable.`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, cmdUtil.DefaultEndpoint, cmdUtil.WrapString("The address on which the line protocol will listen"))

	key = "http-endpoint"
	ServeCmd.PersistentFlags().String(key, cmdUtil.DefaultHTTPEndpoint, cmdUtil.WrapString("The address on which the HTTP API will listen, an empty value disables it"))

	key = "data-dir"
	ServeCmd.PersistentFlags().String(key, "data", cmdUtil.WrapString("DataDir is the directory of the write-ahead log and the snapshot"))

	key = "max-wal-size"
	ServeCmd.PersistentFlags().Int64(key, wstore.DefaultMaxWALSize, cmdUtil.WrapString("The WAL is folded into a new snapshot as soon as it grows beyond this size (in bytes, 0 disables compaction)"))

	key = "queue-capacity"
	ServeCmd.PersistentFlags().Int(key, wstore.DefaultQueueCapacity, cmdUtil.WrapString("How many mutations may wait for the writer before producers block"))

	key = "no-sync"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Do not fsync the WAL after every mutation (NOT durable, for benchmarks only)"))

	key = "in-memory"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Keep the state in memory only, without WAL and snapshot"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 0, cmdUtil.WrapString("Idle connections are closed after this many seconds (0 disables the timeout)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.HTTPEndpoint = viper.GetString("http-endpoint")
	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.MaxWALSize = viper.GetInt64("max-wal-size")
	serveCmdConfig.QueueCapacity = viper.GetInt("queue-capacity")
	serveCmdConfig.NoSync = viper.GetBool("no-sync")
	serveCmdConfig.InMemory = viper.GetBool("in-memory")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	// fail early on an invalid level
	_, err := common.ParseLogLevel(serveCmdConfig.LogLevel)
	return err
}

// run starts the walkv server and blocks until it stopped
func run(_ *cobra.Command, _ []string) error {
	if err := common.InitLoggers(*serveCmdConfig); err != nil {
		return err
	}

	transports := []transport.IServerTransport{tcp.NewTCPServerTransport()}
	if serveCmdConfig.HTTPEndpoint != "" {
		transports = append(transports, http.NewHttpServerTransport())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serv := server.NewRPCServer(*serveCmdConfig, transports...)
	return serv.Serve(ctx)
}
