package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/rendis/placetap/internal/config"
	"github.com/rendis/placetap/internal/engine/geo"
	"github.com/rendis/placetap/internal/engine/scraper"
	"github.com/rendis/placetap/internal/engine/session"
	"github.com/rendis/placetap/internal/tui"
)

var (
	scanReq      session.Request
	scanQueries  string
	scanBounds   string
	scanKeywords string
	scanOverlap  float64
	scanPolygon  string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a headless scan",
	Example: `  placetap scan --query "coffee shop" --city "San Francisco" --target 200
  placetap scan --query dentist --lat 40.7128 --lng -74.0060 --radius 5 --details
  placetap scan --query plumber --bounds 29.5,30.1,-95.9,-95.0 --smart`,
	RunE: runScan,
}

func init() {
	f := scanCmd.Flags()
	f.StringVarP(&scanReq.Query, "query", "q", "", "search term (required)")
	f.StringVar(&scanQueries, "queries", "", "extra comma-separated search terms")
	f.BoolVar(&scanReq.Smart, "smart", false, "also search generated query variations")
	f.BoolVar(&scanReq.Details, "details", false, "fetch phone and website for every result")

	f.StringVar(&scanReq.City, "city", "", "city name (built-in table, else geocoded)")
	f.StringVar(&scanReq.Region, "region", "", "free-text region to geocode")
	f.StringVar(&scanBounds, "bounds", "", "minLat,maxLat,minLng,maxLng")
	f.Float64Var(&scanReq.Lat, "lat", 0, "center latitude")
	f.Float64Var(&scanReq.Lng, "lng", 0, "center longitude")
	f.Float64Var(&scanReq.RadiusKm, "radius", 10, "search radius in km around --lat/--lng")
	f.StringVar(&scanPolygon, "polygon", "", "GeoJSON file; results outside its polygons are dropped")

	f.Float64Var(&scanReq.TileSize, "tile-size", 0, "tile edge in degrees (default from config)")
	f.Float64Var(&scanOverlap, "overlap", 0, "tile overlap fraction in [0,1) (default from config)")
	f.IntVarP(&scanReq.Target, "target", "t", 0, "stop after this many businesses (0 uses config)")
	f.StringVar(&scanReq.Proxy, "proxy", "", "HTTP/SOCKS5 proxy URL")

	f.Float64Var(&scanReq.MinRating, "min-rating", 0, "minimum star rating")
	f.BoolVar(&scanReq.WebsiteOnly, "website-only", false, "keep only businesses with a website (implies --details)")
	f.StringVar(&scanReq.Category, "category", "", "keep only categories containing this text")
	f.StringVar(&scanKeywords, "keywords", "", "comma-separated words the name or category must contain")

	f.StringVarP(&scanReq.OutputDir, "output", "o", "", "output directory for project files (default from config)")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	req := scanReq
	if strings.TrimSpace(req.Query) == "" {
		return fmt.Errorf("--query is required")
	}
	req.Extra = splitList(scanQueries)
	req.Keywords = splitList(scanKeywords)
	if scanBounds != "" {
		req.Bounds, err = parseBounds(scanBounds)
		if err != nil {
			return err
		}
	}
	if scanPolygon != "" {
		req.Polygon, err = geo.LoadPolygon(scanPolygon)
		if err != nil {
			return err
		}
	}
	req.Center = cmd.Flags().Changed("lat") || cmd.Flags().Changed("lng")
	if cmd.Flags().Changed("overlap") {
		req.Overlap = &scanOverlap
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nShutting down gracefully...")
			cancel()
		case <-ctx.Done():
		}
	}()

	s, err := session.Open(ctx, cfg, req, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	sc := s.Search
	fmt.Fprintf(os.Stderr, "Log: %s\n", s.LogPath)
	fmt.Fprintf(os.Stderr, "Bounds: [%.4f, %.4f] - [%.4f, %.4f]\n", sc.MinLat, sc.MinLng, sc.MaxLat, sc.MaxLng)
	fmt.Fprintf(os.Stderr, "Grid: %d tiles of %.4f° (overlap %.0f%%)\n", s.Grid.Total(), sc.TileSize, s.Overlap()*100)
	fmt.Fprintf(os.Stderr, "Queries: %s\n", strings.Join(s.Params.Queries, ", "))
	if s.Params.TargetCount > 0 {
		fmt.Fprintf(os.Stderr, "Target: %d businesses\n", s.Params.TargetCount)
	}

	start := time.Now()
	res, err := s.Run(ctx, nil)
	if err != nil {
		return fmt.Errorf("scanning: %w", err)
	}

	total, _ := s.Store.Count()
	printSummary(s, res, total, time.Since(start))
	if err := tui.SaveRecent(s.DBPath); err != nil {
		s.Logger.Printf("ERROR save_recent err=%v", err)
	}
	return nil
}

func printSummary(s *session.Session, res *scraper.Result, total int, elapsed time.Duration) {
	line := strings.Repeat("═", 40)
	fmt.Fprintf(os.Stderr, "\n%s\n  placetap %s\n%s\n", line, res.State, line)
	fmt.Fprintf(os.Stderr, "  Query:      %s\n", s.Search.Query)
	fmt.Fprintf(os.Stderr, "  Tiles:      %s\n", humanize.Comma(int64(s.Grid.Total())))
	fmt.Fprintf(os.Stderr, "  Passes:     %d (radius x%.1f)\n", res.Passes, res.Multiplier)
	fmt.Fprintf(os.Stderr, "  Found:      %s\n", humanize.Comma(int64(len(res.Businesses))))
	fmt.Fprintf(os.Stderr, "  In project: %s\n", humanize.Comma(int64(total)))
	fmt.Fprintf(os.Stderr, "  API calls:  %s (%s cache hits)\n",
		humanize.Comma(res.Usage.TotalCalls()), humanize.Comma(res.Usage.TotalCacheHits()))
	fmt.Fprintf(os.Stderr, "  Est. cost:  $%.4f (saved $%.4f)\n", res.Usage.EstimatedCostUSD(), res.Usage.EstimatedSavingsUSD())
	fmt.Fprintf(os.Stderr, "  Duration:   %s\n", elapsed.Truncate(time.Second))
	fmt.Fprintf(os.Stderr, "  Database:   %s\n", s.DBPath)
	fmt.Fprintf(os.Stderr, "  Log:        %s\n", s.LogPath)
	fmt.Fprintf(os.Stderr, "%s\n", line)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBounds(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("--bounds wants minLat,maxLat,minLng,maxLng, got %q", s)
	}
	out := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("--bounds value %q: %w", p, err)
		}
		out[i] = v
	}
	return out, nil
}
