// Command loadgen replays a per-function, per-minute RPM trace against a
// downstream FaaS sink. With no subcommand it runs the trace locally;
// "agent", "remote", "calibrate" and "report" cover distributed replay
// and after-the-fact analysis.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/faastrace/loadgen/pkg/backend"
	"github.com/faastrace/loadgen/pkg/client"
	"github.com/faastrace/loadgen/pkg/config"
	"github.com/faastrace/loadgen/pkg/logging"
	"github.com/faastrace/loadgen/pkg/metrics"
	"github.com/faastrace/loadgen/pkg/signals"
	"github.com/faastrace/loadgen/pkg/sink"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "agent":
			runAgentCmd()
			return
		case "remote":
			runRemoteCmd()
			return
		case "calibrate":
			runCalibrateCmd()
			return
		case "report":
			runReportCmd()
			return
		case "run":
			runLocalCmd(os.Args[2:])
			return
		}
	}
	runLocalCmd(os.Args[1:])
}

// Flags holds every CLI flag SetupFlags registers, so callers can read
// back *string/*int values after Parse without repeating the flag name.
type Flags struct {
	ConfigFile  *string
	WriteConfig *string

	CSVPath      *string
	Minutes      *string
	Distribution *string
	Seed         *uint64
	RandomSeed   *bool
	InvocIDStart *uint64

	MinioAddress *string
	MinioBucket  *string

	BackendKind    *string
	BackendURL     *string
	RequestsOut    *string
	InvocationsOut *string
	Outfile        *string
	InFlightBudget *int

	MetricsAddr *string
}

// SetupFlags registers every flag on fs. Each subcommand builds its own
// FlagSet but registers the same flags, so a run described on the
// command line works identically under run, remote and calibrate.
func SetupFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}
	f.ConfigFile = fs.String("config", "", "Path to a YAML run descriptor (disables other flags)")
	f.WriteConfig = fs.String("write-config", "", "Save the resolved configuration to this YAML file and exit")

	f.CSVPath = fs.String("csv", "", "Path to the trace CSV (avg,mapped_wreq,rpm)")
	f.Minutes = fs.String("minutes", "", "Minute range to replay, e.g. \"1..65535\" (default: the whole trace)")
	f.Distribution = fs.String("distribution", "poisson", "Inter-arrival distribution: poisson, uniform or equidistant")
	f.Seed = fs.Uint64("seed", 0, "Fixed PRNG seed (0 selects the fixed sentinel unless -random-seed is set)")
	f.RandomSeed = fs.Bool("random-seed", false, "Seed the master PRNG from system entropy instead of -seed")
	f.InvocIDStart = fs.Uint64("invoc-id", 0, "First invocation id this run allocates")

	f.MinioAddress = fs.String("minio-address", "", "MinIO endpoint payloads are rewritten to reference")
	f.MinioBucket = fs.String("minio-bucket", "", "MinIO bucket payloads are rewritten to reference")

	f.BackendKind = fs.String("backend", "noop", "Sink: noop, http or log")
	f.BackendURL = fs.String("backend-url", "", "Endpoint to POST invocations to, when -backend=http")
	f.RequestsOut = fs.String("requests-out", "", "Path to write the request log to, when -backend=log")
	f.InvocationsOut = fs.String("invocations-out", "", "Path to write the invocation log to (empty disables it)")
	f.Outfile = fs.String("outfile", "", "Path to write the sink's response records to (empty disables the sink)")
	f.InFlightBudget = fs.Int("in-flight", 0, "Cap concurrent in-flight requests (0 disables the cap)")

	f.MetricsAddr = fs.String("metrics-addr", "", "Address to serve /metrics and /healthz on (empty disables it)")
	return f
}

// ResolveConfig builds a config.Config from -config if given, or
// directly from the rest of f's flags otherwise.
func (f *Flags) ResolveConfig() (*config.Config, error) {
	if *f.ConfigFile != "" {
		return config.Load(*f.ConfigFile)
	}
	if *f.CSVPath == "" {
		return nil, fmt.Errorf("-csv is required when -config is not given")
	}
	cfg := &config.Config{
		CSVPath:           *f.CSVPath,
		MinuteRange:       *f.Minutes,
		IATKind:           *f.Distribution,
		Seed:              *f.Seed,
		RandomSeed:        *f.RandomSeed,
		InvocIDStart:      *f.InvocIDStart,
		MinioAddress:      *f.MinioAddress,
		BucketName:        *f.MinioBucket,
		BackendKind:       *f.BackendKind,
		BackendURL:        *f.BackendURL,
		RequestLogPath:    *f.RequestsOut,
		InvocationLogPath: *f.InvocationsOut,
		SinkOutPath:       *f.Outfile,
		MetricsAddr:       *f.MetricsAddr,
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

func (f *Flags) maybeWriteConfig(cfg *config.Config) {
	if *f.WriteConfig == "" {
		return
	}
	if err := config.Save(cfg, *f.WriteConfig); err != nil {
		fmt.Printf("warning: failed to write config: %v\n", err)
		return
	}
	fmt.Printf("configuration written to %s\n", *f.WriteConfig)
}

// buildBackend selects the sink backend.Backend per cfg for the run and
// calibrate subcommands. It does not apply -in-flight; callers wrap the
// result in backend.Bounded themselves. The agent builds its own backend
// in pkg/agent.
func buildBackend(cfg *config.Config) (backend.Backend, error) {
	var b backend.Backend
	switch cfg.BackendKind {
	case "", "noop":
		b = backend.NoOp{}
	case "http":
		if cfg.BackendURL == "" {
			return nil, fmt.Errorf("-backend-url is required when -backend=http")
		}
		b = backend.NewHTTP(cfg.BackendURL, 4096)
	case "log":
		if cfg.RequestLogPath == "" {
			return nil, fmt.Errorf("-requests-out is required when -backend=log")
		}
		l, err := backend.NewLog(cfg.RequestLogPath)
		if err != nil {
			return nil, err
		}
		b = l
	default:
		return nil, fmt.Errorf("unknown backend kind %q", cfg.BackendKind)
	}
	return b, nil
}

// runLocalCmd handles "loadgen [run] [flags]": the default, single-node
// replay.
func runLocalCmd(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	f := SetupFlags(fs)
	fs.Parse(args)

	cfg, err := f.ResolveConfig()
	if err != nil {
		fmt.Printf("error: %v\n", err)
		fs.Usage()
		os.Exit(1)
	}
	f.maybeWriteConfig(cfg)

	log := logging.NewLogger()
	defer log.Sync()

	minuteRange, err := cfg.ResolveMinuteRange()
	if err != nil {
		log.Fatalw("invalid minute range", "error", err)
	}
	iatKind, err := cfg.ResolveIATKind()
	if err != nil {
		log.Fatalw("invalid distribution", "error", err)
	}

	inner, err := buildBackend(cfg)
	if err != nil {
		log.Fatalw("failed to build backend", "error", err)
	}
	b := inner
	if *f.InFlightBudget > 0 {
		b = backend.NewBounded(b, *f.InFlightBudget)
	}

	seed := client.FixedSeed(cfg.Seed)
	if cfg.RandomSeed {
		seed = client.RandomSeed()
	}

	var metricsSrv *metrics.Server
	if cfg.MetricsAddr != "" {
		metricsSrv = metrics.NewServer(cfg.MetricsAddr)
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil {
				log.Warnw("metrics server stopped", "error", err)
			}
		}()
		defer metricsSrv.Shutdown(5 * time.Second)
	}

	c, err := client.New(client.Config{
		CSVPath:      cfg.CSVPath,
		MinuteRange:  minuteRange,
		IATKind:      iatKind,
		Seed:         seed,
		InvocIDStart: cfg.InvocIDStart,
		MinioAddress: cfg.MinioAddress,
		BucketName:   cfg.BucketName,
		Backend:      b,
		InvocLogPath: cfg.InvocationLogPath,
		Log:          log,
	})
	if err != nil {
		log.Fatalw("failed to construct client", "error", err)
	}

	shutdown, stop := signals.Notify()
	defer stop()

	type sinkResult struct {
		n   uint64
		err error
	}
	var sinkDone chan sinkResult
	if cfg.SinkOutPath != "" {
		sc, err := sink.NewClient(cfg.SinkOutPath, sink.NoOp{}, log)
		if err != nil {
			log.Fatalw("failed to construct sink client", "error", err)
		}
		sinkDone = make(chan sinkResult, 1)
		go func() {
			n, err := sc.Run(shutdown)
			sinkDone <- sinkResult{n: n, err: err}
		}()
	}

	total, err := c.Run(shutdown)
	if err != nil {
		log.Errorw("run finished with error", "error", err, "total_requests", total)
		os.Exit(1)
	}
	if sinkDone != nil {
		res := <-sinkDone
		if res.err != nil {
			log.Warnw("sink exited with error", "error", res.err)
		} else {
			log.Infow("sink joined", "num_responses", res.n)
		}
	}
	if l, ok := inner.(*backend.Log); ok {
		count, meanUs, p99Us := l.Summary()
		log.Infow("request log written", "requests", count, "write_mean_us", meanUs, "write_p99_us", p99Us)
	}
	fmt.Printf("total requests issued: %d\n", total)
}
