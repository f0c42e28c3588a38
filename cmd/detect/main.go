package main

import (
	"context"
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"visionserver/internal/client"
)

func main() {
	serverURL := flag.StringP("url", "u", "http://localhost:8000", "gateway or detection server base URL")
	direct := flag.Bool("direct", false, "talk to the detection server (/predict) instead of the gateway (/detect)")
	conf := flag.Float64("conf", 0.25, "confidence threshold")
	noPersist := flag.Bool("no-persist", false, "do not save annotated image and JSON record")
	timeout := flag.Duration("timeout", 30*time.Second, "request timeout")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] IMAGE\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	imagePath := flag.Arg(0)

	data, err := os.ReadFile(imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Cannot read %s: %v\n", imagePath, err)
		os.Exit(1)
	}

	path := "/detect"
	if *direct {
		path = "/predict"
	}
	c := client.New(*serverURL, path, *timeout)

	fmt.Printf("Testing detection with image: %s\n", imagePath)
	resp, err := c.Detect(context.Background(), imagePath, data, *conf, !*noPersist)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Detection failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✅ Detection successful! Found %d object(s)\n", resp.Count)
	for i, d := range resp.Detections {
		fmt.Printf("  %d. %s (confidence: %.2f) bbox: [%.1f, %.1f, %.1f, %.1f]\n",
			i+1, d.Class, d.Confidence, d.BBox[0], d.BBox[1], d.BBox[2], d.BBox[3])
	}
	if resp.AnnotatedImage != "" {
		fmt.Printf("📷 Annotated image: %s\n", c.URL(resp.AnnotatedImage))
	}
	if resp.JSONFile != "" {
		fmt.Printf("📄 JSON results: %s\n", c.URL(resp.JSONFile))
	}
}
