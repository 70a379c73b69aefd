// Command archive-plot renders an XY occupancy heatmap of a world
// archive database, for checking eviction coverage after a replay.
package main

import (
	"database/sql"
	"fmt"
	"math"
	"os"

	"github.com/spf13/pflag"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	_ "modernc.org/sqlite"
)

var (
	dbPath    = pflag.String("db", "", "Archive sqlite path")
	sessionID = pflag.String("session", "", "Session to plot (default: most recent)")
	outPath   = pflag.String("out", "archive.png", "Output PNG path")
	bins      = pflag.Int("bins", 128, "Heatmap bins per axis")
)

// densityGrid bins points into an XY grid for plotter.HeatMap.
type densityGrid struct {
	counts     []float64
	nx, ny     int
	minX, minY float64
	cellX      float64
	cellY      float64
}

func (g *densityGrid) Dims() (int, int)   { return g.nx, g.ny }
func (g *densityGrid) Z(c, r int) float64 { return g.counts[r*g.nx+c] }
func (g *densityGrid) X(c int) float64    { return g.minX + (float64(c)+0.5)*g.cellX }
func (g *densityGrid) Y(r int) float64    { return g.minY + (float64(r)+0.5)*g.cellY }

func main() {
	pflag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "archive-plot: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if *dbPath == "" {
		return fmt.Errorf("--db is required")
	}
	if *bins <= 0 {
		return fmt.Errorf("--bins must be positive")
	}

	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		return fmt.Errorf("open archive db: %w", err)
	}
	defer db.Close()

	session := *sessionID
	if session == "" {
		err := db.QueryRow(
			`SELECT session_id FROM archive_sessions ORDER BY created_at_ns DESC LIMIT 1`,
		).Scan(&session)
		if err == sql.ErrNoRows {
			return fmt.Errorf("archive has no sessions")
		}
		if err != nil {
			return fmt.Errorf("find latest session: %w", err)
		}
	}

	xs, ys, err := loadXY(db, session)
	if err != nil {
		return err
	}
	if len(xs) == 0 {
		return fmt.Errorf("session %s has no points", session)
	}

	grid := binPoints(xs, ys, *bins)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("archive occupancy (%d points)", len(xs))
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"

	hm := plotter.NewHeatMap(grid, palette.Heat(16, 1))
	p.Add(hm)

	if err := p.Save(8*vg.Inch, 8*vg.Inch, *outPath); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	fmt.Printf("wrote %s (session %s)\n", *outPath, session)
	return nil
}

func loadXY(db *sql.DB, session string) (xs, ys []float64, err error) {
	rows, err := db.Query(
		`SELECT x, y FROM world_points WHERE session_id = ?`, session,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("query points: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var x, y float64
		if err := rows.Scan(&x, &y); err != nil {
			return nil, nil, fmt.Errorf("scan point: %w", err)
		}
		xs = append(xs, x)
		ys = append(ys, y)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate points: %w", err)
	}
	return xs, ys, nil
}

func binPoints(xs, ys []float64, n int) *densityGrid {
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for i := range xs {
		minX = math.Min(minX, xs[i])
		maxX = math.Max(maxX, xs[i])
		minY = math.Min(minY, ys[i])
		maxY = math.Max(maxY, ys[i])
	}
	// Degenerate spreads still get a non-zero cell so HeatMap can draw.
	spanX := maxX - minX
	if spanX == 0 {
		spanX = 1
	}
	spanY := maxY - minY
	if spanY == 0 {
		spanY = 1
	}

	g := &densityGrid{
		counts: make([]float64, n*n),
		nx:     n,
		ny:     n,
		minX:   minX,
		minY:   minY,
		cellX:  spanX / float64(n),
		cellY:  spanY / float64(n),
	}
	for i := range xs {
		c := int((xs[i] - minX) / g.cellX)
		r := int((ys[i] - minY) / g.cellY)
		if c >= n {
			c = n - 1
		}
		if r >= n {
			r = n - 1
		}
		g.counts[r*n+c]++
	}
	return g
}
