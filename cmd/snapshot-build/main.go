// snapshot-build materializes the co-occurrence lookup snapshot from a
// text corpus. It reads a list of page URLs or local HTML/text files,
// extracts visible text, counts unigrams and 2-3 word n-grams, and
// writes the counts JSON consumed in snapshot lookup mode.
//
// Usage:
//
//	snapshot-build sources.txt cooccurrence.json
//
// sources.txt holds one URL or file path per line; blank lines and
// lines starting with # are skipped.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/wordparty/phraseforge/pkg/phraseforge/dedup"
	"github.com/wordparty/phraseforge/pkg/phraseforge/pmi"
)

type snapshotFile struct {
	Total    int64            `json:"total"`
	Unigrams map[string]int64 `json:"unigrams"`
	Ngrams   map[string]int64 `json:"ngrams"`
}

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, "usage: snapshot-build <sources-file> <output-json>")
		os.Exit(2)
	}
	sourcesPath, outPath := os.Args[1], os.Args[2]

	sources, err := readSources(sourcesPath)
	if err != nil {
		log.Fatal("read sources: ", err)
	}
	log.Printf("Building co-occurrence snapshot from %d sources...", len(sources))

	snap := snapshotFile{
		Unigrams: make(map[string]int64),
		Ngrams:   make(map[string]int64),
	}

	processed := 0
	for _, src := range sources {
		text, err := fetchText(src)
		if err != nil {
			log.Printf("skipping %s: %v", src, err)
			continue
		}
		count(&snap, text)
		processed++
		if processed%25 == 0 {
			log.Printf("Processed %d/%d sources...", processed, len(sources))
		}
	}
	if processed == 0 {
		log.Fatal("no sources could be read")
	}

	out, err := os.Create(outPath)
	if err != nil {
		log.Fatal("create output: ", err)
	}
	defer out.Close()

	enc := json.NewEncoder(out)
	if err := enc.Encode(snap); err != nil {
		log.Fatal("encode snapshot: ", err)
	}

	log.Printf("✓ Wrote %s: %d tokens, %d unigrams, %d n-grams",
		outPath, snap.Total, len(snap.Unigrams), len(snap.Ngrams))

	logTopCollocations(&snap)
}

// logTopCollocations reports the strongest bigram collocations by
// pairwise PMI, a quick sanity check that the corpus produced real
// co-occurrence signal rather than noise.
func logTopCollocations(snap *snapshotFile) {
	calc := pmi.NewCalculator(1.0)

	type scored struct {
		bigram string
		pmi    float64
	}
	var top []scored
	for bigram, count := range snap.Ngrams {
		if count < 5 {
			continue
		}
		words := strings.Fields(bigram)
		if len(words) != 2 {
			continue
		}
		top = append(top, scored{
			bigram: bigram,
			pmi:    calc.Pair(count, snap.Unigrams[words[0]], snap.Unigrams[words[1]], snap.Total),
		})
	}
	if len(top) == 0 {
		log.Print("no bigram seen 5+ times; corpus may be too small")
		return
	}

	sort.Slice(top, func(i, j int) bool { return top[i].pmi > top[j].pmi })
	if len(top) > 5 {
		top = top[:5]
	}
	log.Print("strongest collocations:")
	for _, s := range top {
		log.Printf("  %-24s pmi=%.2f", s.bigram, s.pmi)
	}
}

func readSources(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var sources []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sources = append(sources, line)
	}
	return sources, scanner.Err()
}

// fetchText returns the visible text of a source, which is either an
// http(s) URL or a local file. HTML is reduced to its text nodes;
// anything else is taken verbatim.
func fetchText(src string) (string, error) {
	var body []byte

	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		client := &http.Client{Timeout: 30 * time.Second}
		resp, err := client.Get(src)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("HTTP %d", resp.StatusCode)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", err
		}
		body = data
		// Be nice to the origin between fetches.
		time.Sleep(100 * time.Millisecond)
	} else {
		data, err := os.ReadFile(src)
		if err != nil {
			return "", err
		}
		body = data
	}

	if looksLikeHTML(body) {
		return extractText(string(body)), nil
	}
	return string(body), nil
}

func looksLikeHTML(data []byte) bool {
	head := strings.ToLower(string(data[:min(len(data), 512)]))
	return strings.Contains(head, "<html") || strings.Contains(head, "<!doctype html") || strings.Contains(head, "<body")
}

// extractText walks the parsed document collecting text nodes,
// skipping script and style subtrees.
func extractText(s string) string {
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return s
	}

	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
			buf.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return buf.String()
}

// count tallies unigrams plus 2- and 3-word n-grams over canonicalized
// tokens.
func count(snap *snapshotFile, text string) {
	words := strings.Fields(dedup.Canonical(text))
	snap.Total += int64(len(words))

	for i, w := range words {
		snap.Unigrams[w]++
		if i+1 < len(words) {
			snap.Ngrams[w+" "+words[i+1]]++
		}
		if i+2 < len(words) {
			snap.Ngrams[w+" "+words[i+1]+" "+words[i+2]]++
		}
	}
}
