package main

import (
	"fmt"
	"log"
	"log/slog"
	"math"
	"net/http"
	"os"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/royalcat/geograph/generator"
	"github.com/royalcat/geograph/graphio"
	"github.com/royalcat/geograph/internal/stats"
	"github.com/royalcat/geograph/quadtree"
	"github.com/royalcat/geograph/server"

	_ "net/http/pprof"

	"github.com/urfave/cli/v3"
	_ "github.com/KimMachineGun/automemlimit"
	_ "go.uber.org/automaxprocs"
)

func main() {
	app := &cli.App{
		Name:        "geograph",
		Description: "Random geometric graph generator backed by a quadtree index",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "serve the spatial index api",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Value: ":8080",
					},
					&cli.IntFlag{
						Name:        "threads",
						Aliases:     []string{"t"},
						DefaultText: "max",
					},
				},
				Action: serve,
			},
			{
				Name:    "generate",
				Aliases: []string{"g"},
				Usage:   "generates a geometric graph and saves it to a file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:      "output",
						Aliases:   []string{"o"},
						Required:  true,
						TakesFile: true,
					},
					&cli.IntFlag{
						Name:    "nodes",
						Aliases: []string{"n"},
						Value:   10_000,
					},
					&cli.StringFlag{
						Name:  "layout",
						Usage: "point layout: uniform, poisson or hyperbolic",
						Value: "uniform",
					},
					&cli.StringFlag{
						Name:    "model",
						Aliases: []string{"m"},
						Usage:   "edge model: threshold or exponential",
						Value:   "threshold",
					},
					&cli.Float64Flag{
						Name:  "radius",
						Usage: "connection radius for the threshold model",
						Value: 0.01,
					},
					&cli.Float64Flag{
						Name:  "decay",
						Usage: "distance decay rate for the exponential model",
						Value: 100,
					},
					&cli.Float64Flag{
						Name:  "avg-degree",
						Usage: "target average degree for the hyperbolic layout",
						Value: 6,
					},
					&cli.Float64Flag{
						Name:  "alpha",
						Usage: "radial dispersion for the hyperbolic layout",
						Value: 1,
					},
					&cli.Uint64Flag{
						Name:  "seed",
						Value: 1,
					},
					&cli.IntFlag{
						Name:        "threads",
						Aliases:     []string{"t"},
						DefaultText: "max",
					},
					&cli.IntFlag{
						Name:  "capacity",
						Usage: "quadtree leaf capacity",
						Value: 1000,
					},
					&cli.StringFlag{
						Name:  "split",
						Usage: "leaf split mode: median or center",
						Value: "median",
					},
					&cli.BoolFlag{
						Name:  "stats",
						Usage: "write a runtime stats report next to the output",
					},
					&cli.StringFlag{
						Name:        "pprof.listen",
						DefaultText: "",
					},
					&cli.BoolFlag{
						Name:        "pprof.profile",
						DefaultText: "",
					},
					&cli.BoolFlag{
						Name:        "pprof.heap",
						DefaultText: "",
					},
				},
				Action: generate,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func generate(ctx *cli.Context) error {
	log := slog.Default()

	threads := ctx.Int("threads")
	if threads == 0 {
		threads = runtime.GOMAXPROCS(0)
	}
	log = log.With("threads", threads)

	if pprofListen := ctx.String("pprof.listen"); pprofListen != "" {
		go func() {
			log.Info("Starting pprof server")
			err := http.ListenAndServe(pprofListen, nil)
			if err != nil {
				log.Error("Error starting pprof server", "error", err)
			}
		}()
	}

	pprofHeap := ctx.Bool("pprof.heap")

	if ctx.Bool("pprof.profile") {
		f, err := os.OpenFile("profile.cpu.pprof", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return fmt.Errorf("error creating pprof file: %w", err)
		}
		err = pprof.StartCPUProfile(f)
		if err != nil {
			return fmt.Errorf("error starting pprof: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	splitMode := quadtree.SplitMedian
	switch ctx.String("split") {
	case "median":
	case "center":
		splitMode = quadtree.SplitCenter
	default:
		return fmt.Errorf("unknown split mode: %s", ctx.String("split"))
	}

	gen := generator.New(
		generator.WithThreads(threads),
		generator.WithSeed(ctx.Uint64("seed")),
		generator.WithCapacity(ctx.Int("capacity")),
		generator.WithSplitMode(splitMode),
		generator.WithProgress(true),
	)

	n := ctx.Int("nodes")
	var points []orb.Point
	switch layout := ctx.String("layout"); layout {
	case "uniform":
		points = gen.UniformPoints(n)
	case "poisson":
		points = gen.PoissonPoints(n)
	case "hyperbolic":
		points = gen.HyperbolicPoints(n, ctx.Float64("avg-degree"), ctx.Float64("alpha"))
	default:
		return fmt.Errorf("unknown layout: %s", layout)
	}
	log.Info("points laid out", "layout", ctx.String("layout"), "count", len(points))

	var collector *stats.Collector
	if ctx.Bool("stats") {
		var err error
		collector, err = stats.NewCollector(time.Second)
		if err != nil {
			return err
		}
		collector.Start()
	}

	var graph *generator.Graph
	var err error
	switch model := ctx.String("model"); model {
	case "threshold":
		graph, err = gen.Threshold(points, ctx.Float64("radius"))
	case "exponential":
		decay := ctx.Float64("decay")
		graph, err = gen.Probabilistic(points, func(d float64) float64 {
			return math.Exp(-decay * d)
		})
	default:
		return fmt.Errorf("unknown model: %s", model)
	}
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	if pprofHeap {
		if err := writeHeapProfile("profile"); err != nil {
			return fmt.Errorf("error writing heap profile: %w", err)
		}
	}

	saveFile := ctx.String("output")
	if !strings.HasSuffix(saveFile, ".zst") {
		saveFile = saveFile + ".zst"
	}

	f, err := os.Create(saveFile)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	err = graphio.Save(graph, graphio.Metadata{
		RunID:       uuid.NewString(),
		DateCreated: time.Now(),
	}, f)
	if err != nil {
		return fmt.Errorf("failed to save graph: %w", err)
	}

	minDeg, maxDeg := graph.DegreeStats()
	log.Info("graph saved",
		"file", saveFile,
		"nodes", graph.N,
		"edges", len(graph.Edges),
		"avg_degree", graph.AvgDegree(),
		"min_degree", minDeg,
		"max_degree", maxDeg,
	)

	if collector != nil {
		report := collector.Stop()
		statsFile := saveFile + ".stats.txt"
		if err := report.SaveToFile(statsFile); err != nil {
			return err
		}
		log.Info("stats report written", "file", statsFile)
	}

	return nil
}

func writeHeapProfile(name string) error {
	f, err := os.Create(name + ".heap.prof")
	if err != nil {
		return err
	}
	defer f.Close()
	return pprof.WriteHeapProfile(f)
}

func serve(ctx *cli.Context) error {
	threads := ctx.Int("threads")
	if threads == 0 {
		threads = runtime.GOMAXPROCS(0)
	}

	return server.Run(ctx.Context, ctx.String("listen"),
		generator.WithThreads(threads),
	)
}
