// churn generates timed bursts of file writes inside a working tree, for
// exercising watch debouncing by hand: run `gitsync watch` in one terminal
// and churn in another, then stage the files and observe one notification
// per burst.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

func main() {
	dir := flag.String("dir", ".", "working tree to write into")
	bursts := flag.Int("bursts", 3, "number of bursts")
	writes := flag.Int("writes", 10, "writes per burst")
	gap := flag.Duration("gap", 2*time.Second, "pause between bursts")
	flag.Parse()

	for b := 0; b < *bursts; b++ {
		for w := 0; w < *writes; w++ {
			path := filepath.Join(*dir, fmt.Sprintf("churn-%d.txt", w))
			body := fmt.Sprintf("burst %d write %d at %s\n", b, w, time.Now().Format(time.RFC3339Nano))
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				fmt.Fprintf(os.Stderr, "write %s: %v\n", path, err)
				os.Exit(1)
			}
			time.Sleep(10 * time.Millisecond)
		}
		fmt.Printf("burst %d done (%d writes)\n", b, *writes)
		time.Sleep(*gap)
	}
}
