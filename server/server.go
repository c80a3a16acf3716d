// Package server exposes the spatial index over HTTP: upload a point
// set, then run circle queries, probabilistic samples and full graph
// generation against it.
package server

import (
	"context"
	"fmt"
	stdlog "log"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/fasthttp/router"
	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/royalcat/geograph/generator"
	"github.com/royalcat/geograph/quadtree"
)

const MaxBodySize = 32 * 1000 * 1000 // 32MB

var meter = otel.Meter("github.com/royalcat/geograph/server")

func Run(ctx context.Context, address string, opts ...generator.Option) error {
	if err := setupTelemetry(ctx); err != nil {
		return fmt.Errorf("failed to initialize otel metrics: %w", err)
	}

	log := slog.Default()

	metricIndexCallCount, err := meter.Int64Counter("http_index_call_total")
	if err != nil {
		return err
	}
	metricQueryCallCount, err := meter.Int64Counter("http_query_call_total")
	if err != nil {
		return err
	}
	metricSampleCallCount, err := meter.Int64Counter("http_sample_call_total")
	if err != nil {
		return err
	}
	metricGenerateCallCount, err := meter.Int64Counter("http_generate_call_total")
	if err != nil {
		return err
	}
	metricCandidatesTested, err := meter.Int64Counter("sample_candidates_tested_total")
	if err != nil {
		return err
	}

	s := &server{
		gen: generator.New(opts...),

		metricIndexCallCount:    metricIndexCallCount,
		metricQueryCallCount:    metricQueryCallCount,
		metricSampleCallCount:   metricSampleCallCount,
		metricGenerateCallCount: metricGenerateCallCount,
		metricCandidatesTested:  metricCandidatesTested,
	}

	r := router.New()
	r.POST("/index", s.IndexHandler)
	r.GET("/query/circle/{x}/{y}/{r}", s.QueryCircleHandler)
	r.GET("/sample/{x}/{y}/{decay}", s.SampleHandler)
	r.POST("/generate", s.GenerateHandler)
	r.Handle(http.MethodGet, "/metrics", fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler()))

	httpServer := &fasthttp.Server{
		ReadTimeout:        time.Second,
		MaxRequestBodySize: MaxBodySize,
		Handler:            r.Handler,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server listening", "address", address)
		if err := httpServer.ListenAndServe(address); err != http.ErrServerClosed {
			stdlog.Fatalf("ListenAndServe(): %v", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return httpServer.ShutdownWithContext(shutdownCtx)
	})
	return g.Wait()
}

type server struct {
	gen *generator.GraphGen

	mu        sync.RWMutex
	points    []orb.Point
	tree      *quadtree.Node
	sampleSeq uint64

	metricIndexCallCount    metric.Int64Counter
	metricQueryCallCount    metric.Int64Counter
	metricSampleCallCount   metric.Int64Counter
	metricGenerateCallCount metric.Int64Counter
	metricCandidatesTested  metric.Int64Counter
}

// IndexHandler replaces the indexed point set with the posted JSON list
// of [x, y] pairs.
func (s *server) IndexHandler(ctx *fasthttp.RequestCtx) {
	s.metricIndexCallCount.Add(ctx, 1)

	points, err := unmarshalPointsListFast(ctx.Request.Body())
	if err != nil {
		ctx.Response.SetStatusCode(http.StatusBadRequest)
		ctx.Response.SetBodyString("failed to parse request: " + err.Error())
		return
	}
	if len(points) == 0 {
		ctx.Response.SetStatusCode(http.StatusBadRequest)
		ctx.Response.SetBodyString("empty point list")
		return
	}

	tree, err := s.gen.BuildIndex(points)
	if err != nil {
		ctx.Response.SetStatusCode(http.StatusInternalServerError)
		ctx.Response.SetBodyString(err.Error())
		return
	}

	s.mu.Lock()
	s.points = points
	s.tree = tree
	s.mu.Unlock()

	ctx.Response.SetStatusCode(http.StatusOK)
	writeIndexInfo(ctx.Response.BodyWriter(), tree)
}

func (s *server) QueryCircleHandler(ctx *fasthttp.RequestCtx) {
	s.metricQueryCallCount.Add(ctx, 1)

	x, okX := pathFloat(ctx, "x")
	y, okY := pathFloat(ctx, "y")
	radius, okR := pathFloat(ctx, "r")
	if !okX || !okY || !okR || radius < 0 {
		ctx.Response.SetStatusCode(http.StatusBadRequest)
		return
	}

	s.mu.RLock()
	tree := s.tree
	s.mu.RUnlock()
	if tree == nil {
		ctx.Response.SetStatusCode(http.StatusConflict)
		ctx.Response.SetBodyString("no point set indexed")
		return
	}

	var ids []quadtree.ElementID
	tree.QueryCircle(orb.Point{x, y}, radius, &ids)

	ctx.Response.SetStatusCode(http.StatusOK)
	writeElementList(ctx.Response.BodyWriter(), ids)
}

// SampleHandler runs one probabilistic query with edge probability
// exp(-decay * distance). Each call derives a fresh generator from a
// per-server sequence, so repeated calls give independent samples.
func (s *server) SampleHandler(ctx *fasthttp.RequestCtx) {
	s.metricSampleCallCount.Add(ctx, 1)

	x, okX := pathFloat(ctx, "x")
	y, okY := pathFloat(ctx, "y")
	decay, okD := pathFloat(ctx, "decay")
	if !okX || !okY || !okD || decay < 0 {
		ctx.Response.SetStatusCode(http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	tree := s.tree
	seq := s.sampleSeq
	s.sampleSeq++
	s.mu.Unlock()
	if tree == nil {
		ctx.Response.SetStatusCode(http.StatusConflict)
		ctx.Response.SetBodyString("no point set indexed")
		return
	}

	rng := rand.New(rand.NewPCG(seq, uint64(time.Now().UnixNano())))
	var ids []quadtree.ElementID
	tested := tree.SampleByProbability(rng, orb.Point{x, y}, func(d float64) float64 {
		return math.Exp(-decay * d)
	}, &ids)
	s.metricCandidatesTested.Add(ctx, int64(tested))

	ctx.Response.SetStatusCode(http.StatusOK)
	writeElementList(ctx.Response.BodyWriter(), ids)
}

func (s *server) GenerateHandler(ctx *fasthttp.RequestCtx) {
	s.metricGenerateCallCount.Add(ctx, 1)

	req, err := unmarshalGenerateRequest(ctx.Request.Body())
	if err != nil {
		ctx.Response.SetStatusCode(http.StatusBadRequest)
		ctx.Response.SetBodyString("failed to parse request: " + err.Error())
		return
	}

	s.mu.RLock()
	points := s.points
	s.mu.RUnlock()
	if points == nil {
		ctx.Response.SetStatusCode(http.StatusConflict)
		ctx.Response.SetBodyString("no point set indexed")
		return
	}

	var graph *generator.Graph
	switch req.Model {
	case "threshold":
		graph, err = s.gen.Threshold(points, req.Radius)
	case "exponential":
		graph, err = s.gen.Probabilistic(points, func(d float64) float64 {
			return math.Exp(-req.Decay * d)
		})
	default:
		ctx.Response.SetStatusCode(http.StatusBadRequest)
		ctx.Response.SetBodyString("unknown model: " + req.Model)
		return
	}
	if err != nil {
		ctx.Response.SetStatusCode(http.StatusInternalServerError)
		ctx.Response.SetBodyString(err.Error())
		return
	}

	ctx.Response.SetStatusCode(http.StatusOK)
	writeGraph(ctx.Response.BodyWriter(), graph)
}

func pathFloat(ctx *fasthttp.RequestCtx, name string) (float64, bool) {
	raw, ok := ctx.UserValue(name).(string)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
