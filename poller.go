/*
Copyright (c) 2023 Purple Clay

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package gitpoller

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Option configures a [Poller] at construction time
type Option func(*Config)

// Config is the fully resolved, validated configuration for one poller
// instance. Build one with [New] and a list of [Option]s rather than
// constructing it directly
type Config struct {
	repoURL string
	name    string

	branch   string
	branches BranchPolicy
	hasList  bool
	onlyTags bool

	gitBin                   string
	category                 string
	categoryFn               CategoryFunc
	project                  string
	codebase                 string
	revlinkFn                RevLinkFunc
	buildPushesWithNoCommits bool

	sshPrivateKey string
	sshHostKey    string
	sshKnownHosts string

	fetchRefspecSet bool

	workdir string

	runner Runner
	store  StateStore
	logger *slog.Logger
}

// RevLinkFunc computes an optional web URL for a commit, given its sha
type RevLinkFunc func(sha string) string

func WithName(name string) Option { return func(c *Config) { c.name = name } }

// WithBranch configures the legacy single short-branch-name policy.
// Mutually exclusive with [WithBranches], [WithPredicateBranches] and [WithOnlyTags]
func WithBranch(name string) Option { return func(c *Config) { c.branch = name } }

// WithBranches configures an explicit list of short branch names to poll.
// Mutually exclusive with [WithBranch], [WithPredicateBranches] and [WithOnlyTags]
func WithBranches(names ...string) Option {
	return func(c *Config) {
		c.branches = ExplicitBranches(names...)
		c.hasList = true
	}
}

// WithAllBranches polls every ref the remote advertises
func WithAllBranches() Option {
	return func(c *Config) {
		c.branches = AllBranches()
		c.hasList = true
	}
}

// WithPredicateBranches polls every remote ref for which predicate
// returns true. Mutually exclusive with [WithBranch], [WithBranches] and [WithOnlyTags]
func WithPredicateBranches(predicate BranchPredicate) Option {
	return func(c *Config) {
		c.branches = PredicateBranches(predicate)
		c.hasList = true
	}
}

// WithOnlyTags polls refs/tags/* exclusively. Mutually exclusive with
// [WithBranch] and [WithBranches]
func WithOnlyTags() Option {
	return func(c *Config) { c.onlyTags = true }
}

func WithGitBin(path string) Option { return func(c *Config) { c.gitBin = path } }

func WithCategory(category string) Option { return func(c *Config) { c.category = category } }

// WithCategoryFunc configures a callable category, computed once the
// rest of a change record's fields are populated, replacing any static
// category configured via [WithCategory]
func WithCategoryFunc(fn CategoryFunc) Option { return func(c *Config) { c.categoryFn = fn } }

func WithProject(project string) Option { return func(c *Config) { c.project = project } }

func WithCodebase(codebase string) Option { return func(c *Config) { c.codebase = codebase } }

func WithRevLinkFunc(fn RevLinkFunc) Option { return func(c *Config) { c.revlinkFn = fn } }

// WithBuildPushesWithNoCommits causes a fast-forward or force-push that
// introduces no new commits to synthesize a single change for the new tip,
// rather than silently advancing the cursor
func WithBuildPushesWithNoCommits() Option {
	return func(c *Config) { c.buildPushesWithNoCommits = true }
}

func WithSSHPrivateKey(key string) Option { return func(c *Config) { c.sshPrivateKey = key } }

func WithSSHHostKey(key string) Option { return func(c *Config) { c.sshHostKey = key } }

func WithSSHKnownHosts(contents string) Option { return func(c *Config) { c.sshKnownHosts = contents } }

func WithWorkDir(dir string) Option { return func(c *Config) { c.workdir = dir } }

// WithFetchRefspec exists only to reject the deprecated fetch_refspec
// option at construction time with [ErrConfig]. It carries no behavior
func WithFetchRefspec(string) Option {
	return func(c *Config) { c.fetchRefspecSet = true }
}

func WithRunner(runner Runner) Option { return func(c *Config) { c.runner = runner } }

func WithStateStore(store StateStore) Option { return func(c *Config) { c.store = store } }

func WithLogger(logger *slog.Logger) Option { return func(c *Config) { c.logger = logger } }

// Poller polls a single remote Git repository on demand via [Poller.Poll],
// maintaining a bare mirror workdir and a persisted per-branch cursor
// across calls
type Poller struct {
	cfg    Config
	ingest Ingest

	featuresOnce sync.Once
	features     FeatureSet
	featuresErr  error
	rawVersion   string

	running bool
}

// New validates opts against repoURL and returns a ready-to-poll [Poller].
// Invalid or mutually exclusive configuration returns [ErrConfig]
func New(repoURL string, ingest Ingest, opts ...Option) (*Poller, error) {
	cfg := Config{
		repoURL:  repoURL,
		branches: ExplicitBranches("master"),
		gitBin:   "git",
		runner:   NewExecRunner(),
		logger:   defaultLogger(),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.repoURL == "" {
		return nil, ErrConfig{Reason: "repourl is required"}
	}
	if cfg.fetchRefspecSet {
		return nil, ErrConfig{Reason: "fetch_refspec is no longer supported"}
	}
	if cfg.name == "" {
		cfg.name = cfg.repoURL
	}
	if cfg.workdir == "" {
		cfg.workdir = filepath.Join("gitpoller-work", sanitizeForPath(cfg.name))
	}

	exclusive := 0
	if cfg.branch != "" {
		exclusive++
	}
	if cfg.hasList {
		exclusive++
	}
	if exclusive > 1 {
		return nil, ErrConfig{Reason: "branch and branches are mutually exclusive"}
	}
	if cfg.onlyTags && (cfg.branch != "" || cfg.hasList) {
		return nil, ErrConfig{Reason: "only_tags is mutually exclusive with branch/branches"}
	}

	switch {
	case cfg.onlyTags:
		cfg.branches = OnlyTags()
	case cfg.branch != "":
		cfg.branches = ExplicitBranches(cfg.branch)
	case cfg.hasList:
		// already set by the option
	default:
		// default policy set above
	}

	if ingest == nil {
		return nil, ErrConfig{Reason: "an ingest is required"}
	}

	return &Poller{cfg: cfg, ingest: ingest}, nil
}

// String returns the poller's stable identity, suitable for logging
func (p *Poller) String() string {
	return fmt.Sprintf("GitPoller(%s)", p.cfg.name)
}

// Name returns the poller's configured identity, used as its state-store key
func (p *Poller) Name() string {
	return p.cfg.name
}

func (p *Poller) log() *slog.Logger {
	if p.cfg.logger == nil {
		return slog.Default()
	}
	return p.cfg.logger
}

// SetRunning toggles the host scheduler's doPoll.running gate. While
// false, Poll still performs the feature probe and remote enumeration
// (their side effects are expected by callers observing the poller) but
// never mutates the cursor or emits changes
func (p *Poller) SetRunning(running bool) {
	p.running = running
}

// ensureFeatures probes git's capabilities once per poller lifetime and
// caches the result
func (p *Poller) ensureFeatures(ctx context.Context, runner Runner) (FeatureSet, string, error) {
	p.featuresOnce.Do(func() {
		res, err := runner.Run(ctx, "", nil, "git", "--version")
		if err != nil || res.ExitCode != 0 {
			p.featuresErr = ErrGitMissing{PathEnv: osEnv("PATH")}
			return
		}

		p.rawVersion = res.Stdout
		v, verr := parseGitVersion(res.Stdout)
		if verr != nil {
			p.featuresErr = verr
			return
		}
		p.features = FeatureSet{SSHViaConfig: v.atLeast(2, 10), SSHViaEnv: v.atLeast(2, 3)}
	})
	return p.features, p.rawVersion, p.featuresErr
}

// Poll drives the full A-K pipeline for one cycle: probe features, enumerate
// the remote, select branches, fetch and resolve tips, compute new commit
// sets, extract metadata, emit changes, and persist the cursor
func (p *Poller) Poll(ctx context.Context) error {
	runner := withGitBin(p.cfg.runner, p.cfg.gitBin)

	features, rawVersion, err := p.ensureFeatures(ctx, runner)
	if err != nil {
		return err
	}

	// the credential scratch dir is created under workdir regardless of the
	// running gate below, so workdir must exist before it does
	if err := os.MkdirAll(p.cfg.workdir, 0o755); err != nil {
		return fmt.Errorf("creating workdir: %w", err)
	}

	dec, err := materializeCredentials(p.cfg.workdir, sshCredentials{
		PrivateKey: p.cfg.sshPrivateKey,
		HostKey:    p.cfg.sshHostKey,
		KnownHosts: p.cfg.sshKnownHosts,
	}, features, rawVersion)
	if err != nil {
		return err
	}
	defer func() { _ = dec.Close() }()

	remote, err := enumerateRemote(ctx, runner, p.cfg.repoURL, dec)
	if err != nil {
		return err
	}

	refs := p.cfg.branches.resolve(remote)

	if !p.running {
		// side effects above are intentional; the cursor and mirror are
		// left untouched while the host scheduler has not armed polling
		return nil
	}

	if err := ensureMirror(ctx, runner, p.cfg.workdir); err != nil {
		return err
	}

	if err := fetchRefs(ctx, runner, p.cfg.workdir, p.cfg.repoURL, refs, dec); err != nil {
		return err
	}

	cur, err := loadCursor(ctx, p.cfg.store, p.cfg.name)
	if err != nil {
		return err
	}
	snapshot := cur.snapshot()

	outcomes := computeCommitSets(ctx, runner, p.cfg.workdir, p.cfg.repoURL, refs, snapshot,
		p.cfg.buildPushesWithNoCommits, func(format string, args ...any) {
			p.log().Warn(fmt.Sprintf(format, args...), "repourl", p.cfg.repoURL)
		})

	next := make(map[string]string, len(outcomes))
	// a polled branch whose rev-parse failed has no outcome; it keeps its
	// previous cursor entry instead of falling out of the persisted cursor
	for _, r := range refs {
		if old, ok := snapshot[r.Key]; ok {
			next[r.Key] = old
		}
	}
	for _, outcome := range outcomes {
		if !outcome.Advance {
			continue
		}
		next[outcome.Key] = outcome.NewCursor

		for _, sha := range outcome.Shas {
			meta, err := extractMetadata(ctx, runner, p.cfg.workdir, sha)
			if err != nil {
				p.log().Warn("metadata extraction failed, leaving cursor at previous value",
					"repourl", p.cfg.repoURL, "branch", outcome.Key, "sha", sha, "error", err)
				if old, ok := snapshot[outcome.Key]; ok {
					next[outcome.Key] = old
				} else {
					delete(next, outcome.Key)
				}
				break
			}

			var revlink string
			if p.cfg.revlinkFn != nil {
				revlink = p.cfg.revlinkFn(sha)
			}

			rec := buildChangeRecord(meta, sha, shortBranchName(outcome.Ref), p.cfg.repoURL,
				p.cfg.project, p.cfg.codebase, revlink, p.cfg.category, p.cfg.categoryFn)

			if err := p.ingest.ChangesAdded(ctx, rec); err != nil {
				return err
			}
		}
	}

	return persistCursor(ctx, p.cfg.store, p.cfg.name, next)
}

// sanitizeForPath makes name safe to use as a single path segment
func sanitizeForPath(name string) string {
	return urlQuote(name)
}

// Manager runs a fixed set of independent [Poller]s concurrently, since
// separate repositories share no state beyond the external state store
type Manager struct {
	pollers []*Poller
}

func NewManager(pollers ...*Poller) *Manager {
	return &Manager{pollers: pollers}
}

// PollAll runs every managed poller's Poll concurrently, waits for all of
// them to return, and returns the first error encountered. Once one poller
// fails, the context passed to the others is cancelled
func (m *Manager) PollAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, poller := range m.pollers {
		poller := poller
		g.Go(func() error {
			return poller.Poll(ctx)
		})
	}
	return g.Wait()
}
