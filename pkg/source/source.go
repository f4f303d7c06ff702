// Package source loads the raw tree the way a report page does: data
// embedded in the page wins, otherwise a single fetch of tree.json. Any
// failure along the way means there is no tree data and the page keeps its
// static navigation.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jupierce/coverage-navtree/pkg/gcovr"
	"github.com/jupierce/coverage-navtree/pkg/log"
	"github.com/jupierce/coverage-navtree/pkg/tree"
)

// ErrNoData means neither source produced a usable tree.
var ErrNoData = errors.New("no tree data")

// maxPayload bounds the size of a fetched tree.
const maxPayload = 64 << 20

// Origin says where the tree data came from.
type Origin string

const (
	OriginEmbedded Origin = "embedded"
	OriginFetched  Origin = "fetched"
)

// Options selects the page and the fetch location. When URL is empty and
// PagePath is set, tree.json next to the page is used.
type Options struct {
	PagePath string
	URL      string
	Client   *http.Client
}

// Data is a successfully loaded raw tree.
type Data struct {
	Nodes  []*tree.Node
	Origin Origin
}

// Load returns the raw tree or an error wrapping ErrNoData. Failures are
// logged as warnings, never returned as anything else.
func Load(ctx context.Context, logger *log.Logger, opts Options) (*Data, error) {
	if opts.PagePath != "" {
		nodes, found, err := loadEmbedded(opts.PagePath)
		switch {
		case err != nil:
			logger.Warning("Could not read embedded tree from %s: %v", opts.PagePath, err)
			return nil, fmt.Errorf("%s: %w", opts.PagePath, ErrNoData)
		case found:
			logger.Debug("Using tree embedded in %s (%d nodes)", opts.PagePath, tree.Count(nodes))
			return &Data{Nodes: nodes, Origin: OriginEmbedded}, nil
		}
	}

	target := opts.URL
	if target == "" && opts.PagePath != "" {
		target = filepath.Join(filepath.Dir(opts.PagePath), gcovr.TreeFile)
	}
	if target == "" {
		logger.Warning("No tree data source configured")
		return nil, ErrNoData
	}

	nodes, err := fetch(ctx, opts.Client, target)
	if err != nil {
		logger.Warning("Could not load tree data from %s: %v", target, err)
		return nil, fmt.Errorf("%s: %w", target, ErrNoData)
	}
	logger.Debug("Fetched tree from %s (%d nodes)", target, tree.Count(nodes))
	return &Data{Nodes: nodes, Origin: OriginFetched}, nil
}

func loadEmbedded(pagePath string) ([]*tree.Node, bool, error) {
	page, err := os.ReadFile(pagePath)
	if err != nil {
		return nil, false, err
	}
	data, ok := gcovr.ExtractTreeData(page)
	if !ok {
		return nil, false, nil
	}
	nodes, err := tree.Unmarshal(data)
	if err != nil {
		return nil, false, err
	}
	return nodes, true, nil
}

func fetch(ctx context.Context, client *http.Client, target string) ([]*tree.Node, error) {
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		data, err = fetchHTTP(ctx, client, target)
	} else {
		data, err = os.ReadFile(strings.TrimPrefix(target, "file://"))
	}
	if err != nil {
		return nil, err
	}
	return tree.Unmarshal(data)
}

func fetchHTTP(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPayload))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}
