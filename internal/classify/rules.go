package classify

import (
    "context"
    "fmt"
    "os"

    "github.com/fsnotify/fsnotify"
    "github.com/rs/zerolog"
    "gopkg.in/yaml.v3"
)

// Rules holds the keyword lists used to tag commit and PR messages.
// Matching is case-insensitive substring containment.
type Rules struct {
    Deployment  []string `yaml:"deployment"`
    Failure     []string `yaml:"failure"`
    Bug         []string `yaml:"bug"`
    PullRequest []string `yaml:"pull_request"`
}

// DefaultRules returns the built-in keyword sets.
func DefaultRules() Rules {
    return Rules{
        Deployment:  []string{"deploy", "release", "bump", "update", "version"},
        Failure:     []string{"bug", "rollback", "hotfix", "revert", "patch"},
        Bug:         []string{"bug", "error", "issue"},
        PullRequest: []string{"pr", "pull request"},
    }
}

// LoadRules reads a YAML rules file. Lists left empty in the file fall back
// to the defaults so a partial override stays usable.
func LoadRules(path string) (Rules, error) {
    data, err := os.ReadFile(path)
    if err != nil { return Rules{}, err }
    var r Rules
    if err := yaml.Unmarshal(data, &r); err != nil {
        return Rules{}, fmt.Errorf("rules %s: %w", path, err)
    }
    def := DefaultRules()
    if len(r.Deployment) == 0 { r.Deployment = def.Deployment }
    if len(r.Failure) == 0 { r.Failure = def.Failure }
    if len(r.Bug) == 0 { r.Bug = def.Bug }
    if len(r.PullRequest) == 0 { r.PullRequest = def.PullRequest }
    return r, nil
}

// Watch reloads the rules file on every write and swaps it into c. A reload
// that fails to parse keeps the previous rules. Runs until ctx is cancelled.
func (c *Classifier) Watch(ctx context.Context, path string, log zerolog.Logger) error {
    watcher, err := fsnotify.NewWatcher()
    if err != nil { return err }
    defer watcher.Close()
    if err := watcher.Add(path); err != nil { return err }
    log.Info().Str("path", path).Msg("classify: watching rules file")

    for {
        select {
        case <-ctx.Done():
            return nil
        case event, ok := <-watcher.Events:
            if !ok { return nil }
            // Editors often save via rename, so catch Create as well.
            if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) { continue }
            rules, err := LoadRules(path)
            if err != nil {
                log.Error().Err(err).Str("path", path).Msg("classify: reload failed; keeping previous rules")
                continue
            }
            c.Update(rules)
            log.Info().Str("path", path).Msg("classify: rules reloaded")
            // Re-add in case an atomic save replaced the inode.
            _ = watcher.Add(path)
        case err, ok := <-watcher.Errors:
            if !ok { return nil }
            log.Error().Err(err).Msg("classify: watcher error")
        }
    }
}
