package main

import (
	"flag"
	"fmt"
	"image"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/scanroi/internal/barcode"
	"github.com/MeKo-Tech/scanroi/internal/common"
	"github.com/MeKo-Tech/scanroi/internal/config"
	"github.com/MeKo-Tech/scanroi/internal/frame"
	"github.com/MeKo-Tech/scanroi/internal/scanner"
	"github.com/MeKo-Tech/scanroi/internal/testutil"
	"github.com/MeKo-Tech/scanroi/internal/utils"
)

// caseResult is the outcome of decoding one frame repeatedly under one setup.
type caseResult struct {
	name    string
	symbols int
	stats   *common.RunStats
}

func main() {
	var (
		imagePath  = flag.String("image", "", "Frame to decode (default: a generated portrait photo)")
		upright    = flag.Bool("upright", true, "The frame is an upright photo, not a sensor frame")
		rectFlag   = flag.String("rect", "0,0,1080,1080", "Scan rectangle left,top,right,bottom in view pixels")
		engineName = flag.String("engine", "", "Decoding engine (default: "+barcode.DefaultEngine+")")
		iterations = flag.Int("iterations", 20, "Number of decodes per case")
		outputFile = flag.String("output", "", "Output file for results (optional)")
	)
	flag.Parse()

	fmt.Println("scanroi region vs whole-frame decode benchmark")
	fmt.Println("==============================================")

	rect, err := parseRect(*rectFlag)
	if err != nil {
		log.Fatalf("Invalid -rect: %v", err)
	}
	cfg := config.DefaultConfig()
	g, err := cfg.Geometry()
	if err != nil {
		log.Fatalf("Invalid default geometry: %v", err)
	}

	img, err := loadFrame(*imagePath)
	if err != nil {
		log.Fatalf("Failed to load frame: %v", err)
	}
	if *upright {
		if img, err = utils.SensorImage(img, g.Rotation()); err != nil {
			log.Fatalf("Failed to rotate frame: %v", err)
		}
	}
	f, err := frame.FromImage(img)
	if err != nil {
		log.Fatalf("Failed to convert frame: %v", err)
	}
	defer f.Release()
	g.PreviewWidth, g.PreviewHeight = f.Width, f.Height

	fmt.Printf("Frame %dx%d, %d iterations per case\n\n", f.Width, f.Height, *iterations)

	var results []caseResult
	for _, c := range []struct {
		name string
		rect *image.Rectangle
	}{
		{"whole frame", nil},
		{"scan region", &rect},
	} {
		res, err := runCase(c.name, *engineName, g, c.rect, f, *iterations)
		if err != nil {
			log.Fatalf("Benchmark %q failed: %v", c.name, err)
		}
		fmt.Printf("%s (%d symbol(s))\n", res.stats.String(), res.symbols)
		results = append(results, res)
	}

	if *outputFile != "" {
		if err := saveResultsToFile(*outputFile, results); err != nil {
			log.Printf("Failed to save results to file: %v", err)
		} else {
			fmt.Printf("Results saved to: %s\n", *outputFile)
		}
	}
}

func runCase(name, engineName string, g scanner.Geometry, rect *image.Rectangle, f *frame.Frame,
	iterations int) (caseResult, error) {
	engine, err := barcode.NewEngine(engineName)
	if err != nil {
		return caseResult{}, err
	}
	sc, err := scanner.NewStatic(engine, g)
	if err != nil {
		return caseResult{}, err
	}
	if rect != nil {
		sc.SetDecodeRect(*rect)
	}

	res := caseResult{name: name, stats: common.NewRunStats(name)}
	cam := g.Camera()
	for range iterations {
		timer := common.NewTimer()
		symbols, err := sc.Decode(f.Data, cam)
		if err != nil {
			res.stats.Fail()
			continue
		}
		res.stats.Add(timer.Stop())
		res.symbols = len(symbols)
	}
	res.stats.Finish()
	return res, nil
}

func loadFrame(path string) (image.Image, error) {
	if path != "" {
		img, _, err := utils.LoadImage(path)
		return img, err
	}
	top, err := testutil.EncodeQRCode("inside", 200)
	if err != nil {
		return nil, err
	}
	bottom, err := testutil.EncodeQRCode("outside", 200)
	if err != nil {
		return nil, err
	}
	return testutil.Scene(480, 640,
		testutil.Placement{Symbol: top, At: image.Pt(140, 100)},
		testutil.Placement{Symbol: bottom, At: image.Pt(140, 410)},
	), nil
}

func parseRect(s string) (image.Rectangle, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return image.Rectangle{}, fmt.Errorf("want left,top,right,bottom, got %q", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return image.Rectangle{}, err
		}
		v[i] = n
	}
	return image.Rect(v[0], v[1], v[2], v[3]), nil
}

func saveResultsToFile(filename string, results []caseResult) error {
	file, err := os.Create(filename) //nolint:gosec // G304: output path from command line
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	_, _ = fmt.Fprintln(file, "scanroi decode benchmark results")
	_, _ = fmt.Fprintln(file, "================================")
	_, _ = fmt.Fprintln(file)

	for _, result := range results {
		_, _ = fmt.Fprintf(file, "%s\n", result.stats.String())
	}

	_, _ = fmt.Fprintln(file)
	_, _ = fmt.Fprintln(file, "CSV Format:")
	_, _ = fmt.Fprintln(file, "Case,Runs,Failures,Avg_ms,Min_ms,Max_ms,Symbols")

	for _, result := range results {
		minD, maxD := result.stats.MinMax()
		_, _ = fmt.Fprintf(file, "%s,%d,%d,%.3f,%.3f,%.3f,%d\n",
			result.name,
			result.stats.Count(),
			result.stats.Failures,
			common.Milliseconds(result.stats.Average()),
			common.Milliseconds(minD),
			common.Milliseconds(maxD),
			result.symbols,
		)
	}

	return nil
}
