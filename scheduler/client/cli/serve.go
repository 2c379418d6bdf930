package cli

/**
implements the command line entry for running a scheduler
*/

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/twitter/scd/common/client"
	"github.com/twitter/scd/common/endpoints"
	"github.com/twitter/scd/common/stats"
	"github.com/twitter/scd/scheduler/control"
	"github.com/twitter/scd/scheduler/server"
	"github.com/twitter/scd/scheduler/store"
)

type serveCmd struct {
	input      string
	wait       bool
	printStats bool
	statsLatch time.Duration
	httpAddr   string
}

func (c *serveCmd) RegisterFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "serve",
		Short: "Run a scheduler and send it control commands read one per line",
		Long: `Each input line is either a JSON command such as
  {"command": "SESSION_REQUEST", "fields": {"endpoint": "cli", "minNodes": 2}}
or a hex encoded command frame as printed by 'scd encode'. Every command gets one
JSON response line on stdout.`,
	}
	r.Flags().StringVar(&c.input, "input", "-", "File to read commands from, - for stdin")
	r.Flags().BoolVar(&c.wait, "wait", false, "Keep the scheduler running after the input ends, until interrupted")
	r.Flags().BoolVar(&c.printStats, "stats", false, "Print the scheduler's stats as JSON on exit")
	r.Flags().StringVar(&c.httpAddr, "http_addr", "", "Serve health, stats and queues over http on this address")
	r.Flags().DurationVar(&c.statsLatch, "stats_latch", 15*time.Second, "Histogram latch interval")
	return r
}

func (c *serveCmd) Run(cl *client.SimpleClient, cmd *cobra.Command, args []string) error {
	sc, err := cl.Configs.CreateSchedulerConfig()
	if err != nil {
		return fmt.Errorf("Error creating scheduler config: %v", err)
	}
	cc, err := cl.Configs.CreateControlConfig()
	if err != nil {
		return fmt.Errorf("Error creating control config: %v", err)
	}
	st, err := store.New(cl.Configs.CreateStoreConfig())
	if err != nil {
		return fmt.Errorf("Error creating store: %v", err)
	}
	if sc.DebugMode {
		log.Warn("serve always runs the scheduling loop, ignoring DebugMode")
		sc.DebugMode = false
	}

	stat, cancelStats := stats.NewCustomStatsReceiver(stats.NewFinagleStatsRegistry, c.statsLatch)
	defer cancelStats()
	stat = stat.Precision(time.Millisecond)

	f, err := server.NewFramework(*sc, st, nil, stat)
	if err != nil {
		return fmt.Errorf("Error creating scheduler: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	loopCtx, stopLoop := context.WithCancel(ctx)
	f.Start(loopCtx)
	defer func() {
		stopLoop()
		<-f.Done()
		f.Close()
	}()

	if c.httpAddr != "" {
		admin := endpoints.NewAdminServer(c.httpAddr, stat)
		admin.HandleJSON("/admin/queues", func() interface{} { return f.Queues() })
		go func() {
			if err := admin.Serve(loopCtx); err != nil && err != http.ErrServerClosed {
				log.WithFields(log.Fields{"err": err}).Error("Admin server failed")
			}
		}()
	}

	ep := control.NewEndpoint(cc.Name, control.NewHandler(f, stat), cc.MaxRequests, cc.MaxBurst, stat)
	log.WithFields(
		log.Fields{
			"endpoint":  ep.Name(),
			"algorithm": f.Algorithm(),
			"input":     c.input,
		}).Info("Serving")

	in, err := c.open(cmd)
	if err != nil {
		return err
	}
	defer in.Close()

	done := make(chan error, 1)
	go func() {
		done <- serveCommands(ep, in, cmd.OutOrStdout())
	}()
	select {
	case err = <-done:
	case <-ctx.Done():
		log.Info("Interrupted, stopping")
	}
	if err == nil && c.wait {
		<-ctx.Done()
	}

	if c.printStats {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", stat.Render(true))
	}
	return err
}

func (c *serveCmd) open(cmd *cobra.Command) (io.ReadCloser, error) {
	if c.input == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	in, err := os.Open(c.input)
	if err != nil {
		return nil, fmt.Errorf("Error opening input: %v", err)
	}
	return in, nil
}

// serveCommands sends each input line to ep and writes one response line per
// command. Blank lines and lines starting with # are skipped. A line that can't be
// parsed gets an error response and doesn't stop the input.
func serveCommands(ep *control.Endpoint, in io.Reader, out io.Writer) error {
	enc := json.NewEncoder(out)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		var rl responseLine
		if strings.HasPrefix(text, "{") {
			rl = sendCommand(ep, text)
		} else {
			rl = sendFrame(ep, text)
		}
		if rl.Error != "" {
			log.WithFields(
				log.Fields{
					"command": rl.Command,
					"err":     rl.Error,
				}).Info("Command failed")
		}
		if err := enc.Encode(rl); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func sendCommand(ep *control.Endpoint, text string) responseLine {
	cmd, err := parseCommand(text)
	if err != nil {
		return responseLine{Command: "INVALID", Response: control.TagError.String(), Error: err.Error()}
	}
	return describeResponse(cmd.Tag, <-ep.Send(cmd))
}

func sendFrame(ep *control.Endpoint, text string) responseLine {
	frame, err := parseFrame(text)
	if err == nil && len(frame) == 0 {
		err = fmt.Errorf("empty frame")
	}
	if err != nil {
		return responseLine{Command: "INVALID", Response: control.TagError.String(), Error: err.Error()}
	}
	r, err := control.DecodeResponse(<-ep.SendFrame(frame))
	if err != nil {
		return responseLine{Command: control.Tag(frame[0]).String(), Response: control.TagError.String(), Error: err.Error()}
	}
	return describeResponse(control.Tag(frame[0]), r)
}
