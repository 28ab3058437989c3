// oc-convert turns a dump of OAI-PMH records into normalized package
// metadata, one JSON document per line. The input is anything that
// contains <record> elements, e.g. the concatenated pages of a
// ListRecords crawl; plain, gzip and zstd compressed files work.
//
// $ oc-convert -f dump.xml.zst | head -1 | jq .
package main

import (
	"context"
	"encoding/xml"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"

	"github.com/antchfx/xmlquery"
	"github.com/klauspost/compress/zstd"
	gzip "github.com/klauspost/pgzip"
	"github.com/segmentio/encoding/json"
	log "github.com/sirupsen/logrus"

	"github.com/miku/oaicat"
	"github.com/miku/oaicat/catalog"
	"github.com/miku/oaicat/convert"
	"github.com/miku/oaicat/schema"
	"github.com/miku/oaicat/xmlstream"
)

var (
	filename    = flag.String("f", "", "input file, stdin if empty")
	numWorkers  = flag.Int("T", runtime.NumCPU(), "number of workers")
	showVersion = flag.Bool("version", false, "show version")
)

// rawRecord is the envelope around a single harvested record. Status
// and metadata payload is all we need here.
type rawRecord struct {
	XMLName xml.Name `xml:"record"`
	Header  struct {
		Status     string `xml:"status,attr"`
		Identifier string `xml:"identifier"`
		Datestamp  string `xml:"datestamp"`
	} `xml:"header"`
	Metadata struct {
		Raw string `xml:",innerxml"`
	} `xml:"metadata"`
}

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(oaicat.Version)
		os.Exit(0)
	}
	compiled, err := schema.DublinCore.Compile()
	if err != nil {
		log.Fatal(err)
	}
	normalizer, err := convert.NewNormalizer(catalog.NewMemCatalog(), nil, schema.DublinCoreNamespaces)
	if err != nil {
		log.Fatal(err)
	}
	var skipped int64
	proc := xmlstream.NewProcessor("record", func(b []byte) ([]byte, error) {
		var rec rawRecord
		if err := xml.Unmarshal(b, &rec); err != nil {
			return nil, err
		}
		if rec.Header.Status == "deleted" || strings.TrimSpace(rec.Metadata.Raw) == "" {
			atomic.AddInt64(&skipped, 1)
			return nil, nil
		}
		doc, err := xmlquery.Parse(strings.NewReader(rec.Metadata.Raw))
		if err != nil {
			return nil, err
		}
		mapped := compiled.Read(doc)
		pkg, err := normalizer.Normalize(context.Background(), rec.Header.Identifier, mapped, "", "")
		if err != nil {
			log.Warnf("%s: %v", rec.Header.Identifier, err)
			atomic.AddInt64(&skipped, 1)
			return nil, nil
		}
		buf, err := json.Marshal(pkg)
		if err != nil {
			return nil, err
		}
		return append(buf, '\n'), nil
	})
	proc.Workers = *numWorkers
	r, err := openInput(*filename)
	if err != nil {
		log.Fatal(err)
	}
	if err := proc.Run(context.Background(), r, os.Stdout); err != nil {
		log.Fatal(err)
	}
	if skipped > 0 {
		log.Infof("skipped %d records", skipped)
	}
}

// openInput returns a reader over the possibly compressed input file.
func openInput(name string) (io.Reader, error) {
	if name == "" {
		return os.Stdin, nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	switch filepath.Ext(name) {
	case ".gz":
		return gzip.NewReader(f)
	case ".zst", ".zstd":
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	}
	return f, nil
}
