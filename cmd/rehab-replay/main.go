// Command rehab-replay evaluates a recorded JSON Lines landmark file, one
// frame per line, and prints per-frame feedback and the session summary.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/rehab.report/internal/api"
	"github.com/banshee-data/rehab.report/internal/config"
	"github.com/banshee-data/rehab.report/internal/db"
	"github.com/banshee-data/rehab.report/internal/evaluator"
	"github.com/banshee-data/rehab.report/internal/exercise"
	"github.com/banshee-data/rehab.report/internal/feedback"
	"github.com/banshee-data/rehab.report/internal/fsutil"
	"github.com/banshee-data/rehab.report/internal/pose"
	"github.com/banshee-data/rehab.report/internal/report"
	"github.com/banshee-data/rehab.report/internal/timeutil"
	"github.com/banshee-data/rehab.report/internal/version"
)

type options struct {
	input       string
	exercise    string
	side        string
	repetitions int
	configPath  string
	dbPath      string
	reportDir   string
	serverURL   string
	realtime    bool
	jsonOut     bool
	quiet       bool
}

func parseFlags(fs *flag.FlagSet, args []string) (*options, bool, error) {
	o := &options{}
	fs.StringVar(&o.input, "input", "-", "JSON Lines landmark file, - for stdin")
	fs.StringVar(&o.exercise, "exercise", string(exercise.ShoulderFlexion), "exercise to evaluate")
	fs.StringVar(&o.side, "side", "", "side to evaluate (left or right), default from config")
	fs.IntVar(&o.repetitions, "reps", 0, "target repetitions, default from config")
	fs.StringVar(&o.configPath, "config", "", "tuning config JSON file (default: built-in defaults)")
	fs.StringVar(&o.dbPath, "db", "", "store the session in this sqlite database")
	fs.StringVar(&o.reportDir, "report", "", "write HTML and PNG charts into this directory")
	fs.StringVar(&o.serverURL, "server", "", "send frames to a running rehab-server instead of evaluating locally")
	fs.BoolVar(&o.realtime, "realtime", false, "pace frames by their timestamps")
	fs.BoolVar(&o.jsonOut, "json", false, "print feedback as JSON lines")
	fs.BoolVar(&o.quiet, "quiet", false, "print only the summary")
	showVersion := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, false, err
	}
	if fs.NArg() > 0 {
		o.input = fs.Arg(0)
	}
	return o, *showVersion, nil
}

func main() {
	fs := flag.NewFlagSet("rehab-replay", flag.ExitOnError)
	opts, showVersion, err := parseFlags(fs, os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	if showVersion {
		fmt.Println(version.String("rehab-replay"))
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, timeutil.RealClock{}, os.Stdout); err != nil {
		log.Fatalf("replay failed: %v", err)
	}
}

func loadTuning(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.EmptyTuningConfig(), nil
	}
	return config.LoadTuningConfig(path)
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" || path == "" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, nil
}

// exerciseConfig resolves the tuned defaults and the command-line overrides.
func exerciseConfig(o *options, tuning *config.TuningConfig) (exercise.Definition, exercise.Config, error) {
	def, err := exercise.Lookup(o.exercise)
	if err != nil {
		return nil, exercise.Config{}, err
	}
	cfg, err := tuning.ExerciseConfig(def.Kind(), def.DefaultConfig())
	if err != nil {
		return nil, exercise.Config{}, err
	}
	if o.side != "" {
		cfg.Side = exercise.Side(o.side)
	}
	if o.repetitions > 0 {
		cfg.Repetitions = o.repetitions
	}
	return def, cfg, cfg.Validate()
}

// pacer sleeps between frames so they replay at their recorded rate.
type pacer struct {
	clock timeutil.Clock
	last  time.Time
}

func (p *pacer) wait(ts time.Time) {
	if p == nil || ts.IsZero() {
		return
	}
	if !p.last.IsZero() && ts.After(p.last) {
		p.clock.Sleep(ts.Sub(p.last))
	}
	p.last = ts
}

func printFeedback(out io.Writer, o *options, i int, fb feedback.Feedback) {
	switch {
	case o.quiet:
	case o.jsonOut:
		b, err := json.Marshal(fb)
		if err != nil {
			log.Printf("failed to encode feedback: %v", err)
			return
		}
		fmt.Fprintln(out, string(b))
	default:
		fmt.Fprintf(out, "%5d %-17s angle %6.1f score %5.1f reps %d  %s\n",
			i, fb.Level, fb.CurrentAngle, fb.Score, fb.Repetitions, fb.PrimaryMessage())
	}
}

func run(ctx context.Context, o *options, clock timeutil.Clock, out io.Writer) error {
	tuning, err := loadTuning(o.configPath)
	if err != nil {
		return err
	}
	def, cfg, err := exerciseConfig(o, tuning)
	if err != nil {
		return err
	}

	in, err := openInput(o.input)
	if err != nil {
		return err
	}
	defer in.Close()
	frames := pose.NewFrameReader(in)

	var p *pacer
	if o.realtime {
		p = &pacer{clock: clock}
	}

	if o.serverURL != "" {
		return runRemote(ctx, o, def, cfg, frames, p, out)
	}

	ev := evaluator.New(evaluator.Config{
		Clock:               clock,
		VisibilityThreshold: tuning.GetVisibilityThreshold(),
		HistoryLimit:        tuning.GetSessionHistoryLimit(),
		Hooks: evaluator.Hooks{
			OnComplete: func(s evaluator.Summary) {
				if !o.quiet && !o.jsonOut {
					fmt.Fprintf(out, "target of %d repetitions reached\n", s.TargetRepetitions)
				}
			},
		},
	})
	if err := ev.SetExercise(def, cfg); err != nil {
		return err
	}
	if err := ev.StartSession(); err != nil {
		return err
	}

	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			log.Printf("replay interrupted after %d frames", i)
			break
		}
		set, err := frames.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		p.wait(set.Timestamp())
		fb, err := ev.EvaluateFrame(set)
		if err != nil {
			return err
		}
		printFeedback(out, o, i, fb)
	}
	if err := ev.EndSession(); err != nil {
		return err
	}

	summary := ev.Summary()
	fmt.Fprintln(out, summary)

	if o.dbPath != "" {
		database, err := db.NewDB(o.dbPath)
		if err != nil {
			return err
		}
		defer database.Close()
		if err := database.InsertSession(summary, cfg); err != nil {
			return err
		}
		if err := database.InsertFrames(summary.SessionID, ev.Frames()); err != nil {
			return err
		}
		fmt.Fprintf(out, "stored session %s in %s\n", summary.SessionID, o.dbPath)
	}

	if o.reportDir != "" {
		rs := report.Session{Summary: summary, Config: cfg, Frames: ev.Frames()}
		htmlPath, pngPath, err := report.Save(fsutil.OSFileSystem{}, o.reportDir, rs)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote %s and %s\n", htmlPath, pngPath)
	}
	return nil
}

// runRemote replays the frames against a running server.
func runRemote(ctx context.Context, o *options, def exercise.Definition, cfg exercise.Config, frames *pose.FrameReader, p *pacer, out io.Writer) error {
	c, err := api.NewClient(o.serverURL, nil)
	if err != nil {
		return err
	}
	sess, err := c.CreateSession(api.CreateSessionRequest{Exercise: string(def.Kind()), Config: &cfg, Start: true})
	if err != nil {
		return err
	}
	log.Printf("replaying into session %s on %s", sess.ID, o.serverURL)

	for i := 0; ctx.Err() == nil; i++ {
		set, err := frames.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		p.wait(set.Timestamp())
		fb, err := c.SendFrame(sess.ID, set.ToFrame())
		if err != nil {
			return err
		}
		printFeedback(out, o, i, fb)
	}

	fin, err := c.FinishSession(sess.ID)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, fin.Summary)
	if fin.Persisted {
		fmt.Fprintf(out, "stored session %s on the server\n", sess.ID)
	}
	return nil
}
