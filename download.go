// Copyright (C) The hrdep Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package hrdep

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"
)

// downloader fetches the raw dataset files into a local directory.
// Files already present are skipped, so re-running after a partial
// failure only transfers what is still missing.
type downloader struct {
	baseURL  string
	dir      string
	parallel int
	client   *http.Client
}

func (cmd *downloader) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&cmd.baseURL, "base-url", baseURLFromEnv(), "remote store base `URL` (env HRDEP_BASE_URL)")
	flags.StringVar(&cmd.dir, "dir", defaultRawDir, "destination `directory` for raw dataset files")
	flags.IntVar(&cmd.parallel, "parallel", 1, "number of concurrent transfers")
	files := flags.String("files", strings.Join(defaultDatasets, ","), "comma-separated `list` of dataset files to fetch")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}

	outcomes, err := cmd.fetchAll(splitList(*files))
	if err != nil {
		return 1
	}
	ok, skipped := 0, 0
	for _, oc := range outcomes {
		switch {
		case oc.err != nil:
			log.Warnf("%s: %s", oc.name, oc.err)
		case oc.skipped:
			ok++
			skipped++
		default:
			ok++
		}
	}
	fmt.Fprintf(stdout, "downloaded %d/%d files (%d already present)\n", ok, len(outcomes), skipped)
	if ok < len(outcomes) {
		fmt.Fprintf(stderr, "some files could not be retrieved; the dataset release may have moved -- check -base-url and re-run this step\n")
	}
	return 0
}

type fetchOutcome struct {
	name    string
	skipped bool
	err     error
}

// fetchAll transfers each named file once, in parallel up to
// cmd.parallel. One file's failure never aborts the batch; the
// returned slice has one outcome per requested file, in input order.
func (cmd *downloader) fetchAll(names []string) ([]fetchOutcome, error) {
	err := os.MkdirAll(cmd.dir, 0777)
	if err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", cmd.dir, err)
	}
	if cmd.parallel < 1 {
		cmd.parallel = 1
	}
	outcomes := make([]fetchOutcome, len(names))
	throttle := throttle{Max: cmd.parallel}
	for i, name := range names {
		i, name := i, name
		throttle.Acquire()
		go func() {
			defer throttle.Release()
			outcomes[i] = cmd.fetch(name)
		}()
	}
	throttle.Wait()
	return outcomes, nil
}

// fetch transfers one file unless it already exists locally. Single
// attempt: the caller re-invokes the whole stage to retry.
func (cmd *downloader) fetch(name string) fetchOutcome {
	dst := filepath.Join(cmd.dir, name)
	if _, err := os.Stat(dst); err == nil {
		log.Infof("%s: already present, skipping", dst)
		return fetchOutcome{name: name, skipped: true}
	}
	url := strings.TrimSuffix(cmd.baseURL, "/") + "/" + name
	log.Infof("fetching %s", url)

	client := cmd.client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Get(url)
	if err != nil {
		return fetchOutcome{name: name, err: fmt.Errorf("get %s: %w", url, err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return fetchOutcome{name: name, err: fmt.Errorf("get %s: %w", url, ErrNotFound)}
	}
	if resp.StatusCode != http.StatusOK {
		return fetchOutcome{name: name, err: fmt.Errorf("get %s: unexpected status %s", url, resp.Status)}
	}

	// Write to a temp name and rename, so a half-written file never
	// passes the existence check on the next run.
	tmp := dst + ".part"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
	if err != nil {
		return fetchOutcome{name: name, err: err}
	}
	digest, _ := blake2b.New256(nil)
	n, err := io.Copy(io.MultiWriter(f, digest), resp.Body)
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return fetchOutcome{name: name, err: fmt.Errorf("write %s: %w", tmp, err)}
	}
	if err = f.Close(); err != nil {
		os.Remove(tmp)
		return fetchOutcome{name: name, err: fmt.Errorf("close %s: %w", tmp, err)}
	}
	if err = os.Rename(tmp, dst); err != nil {
		return fetchOutcome{name: name, err: err}
	}
	log.Infof("%s: %d bytes, blake2b %x", dst, n, digest.Sum(nil))
	return fetchOutcome{name: name}
}
