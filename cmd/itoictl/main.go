// itoictl is the operator companion of the workspace server: it mints capability tokens for local
// testing and seeds the file store from a directory.
package main

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/YudyTkm/itlingo-itoi-sub001/internal/config"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/db"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/security"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/workspace/domain"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/workspace/layout"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/workspace/repository"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "itoictl",
	Short:        "Workspace server tooling",
	SilenceUsage: true,
}

var mintOpts struct {
	identity domain.Identity
	baseURL  string
}

var mintTokenCmd = &cobra.Command{
	Use:   "mint-token",
	Short: "Encrypt a workspace identity into createTempWorkspace query values",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		cipher, err := security.NewCapabilityCipher([]byte(cfg.CapabilityKey))
		if err != nil {
			return err
		}
		link, err := mintLink(cipher, mintOpts.identity, mintOpts.baseURL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), link)
		return nil
	},
}

var seedOpts struct {
	workspace string
	dir       string
	remote    string
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load a local directory into the file store for a workspace",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := layout.ValidateName(seedOpts.workspace); err != nil {
			return err
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		pool, err := db.Open(ctx, cfg.DatabaseURL, cfg.DeployMode())
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer pool.Close()
		repo := repository.NewPostgresRepository(pool)

		n, err := seedDir(ctx, afero.NewOsFs(), repo, seedOpts.workspace, seedOpts.dir)
		if err != nil {
			return err
		}
		if seedOpts.remote != "" {
			if err := repo.AssignGitRemote(ctx, seedOpts.workspace, seedOpts.remote); err != nil {
				return fmt.Errorf("assigning git remote: %w", err)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d files into workspace %s\n", n, seedOpts.workspace)
		return nil
	},
}

func init() {
	f := mintTokenCmd.Flags()
	f.StringVar(&mintOpts.identity.Name, "name", "", "workspace name")
	f.StringVar(&mintOpts.identity.User, "user", "", "owner user")
	f.StringVar(&mintOpts.identity.Organization, "org", "", "organization")
	f.BoolVar(&mintOpts.identity.Writable, "writable", true, "grant write access")
	f.Int64Var(&mintOpts.identity.WorkspaceID, "id", 0, "portal workspace id")
	f.StringVar(&mintOpts.baseURL, "base-url", "http://localhost:8081", "workspace server URL")
	_ = mintTokenCmd.MarkFlagRequired("name")

	f = seedCmd.Flags()
	f.StringVar(&seedOpts.workspace, "workspace", "", "workspace name")
	f.StringVar(&seedOpts.dir, "dir", ".", "directory to load")
	f.StringVar(&seedOpts.remote, "remote", "", "git remote URL to assign")
	_ = seedCmd.MarkFlagRequired("workspace")

	rootCmd.AddCommand(mintTokenCmd, seedCmd)
}

// mintLink encrypts id and returns the createTempWorkspace URL carrying it.
func mintLink(cipher *security.CapabilityCipher, id domain.Identity, baseURL string) (string, error) {
	iv, ct, err := cipher.Encrypt(id)
	if err != nil {
		return "", fmt.Errorf("encrypting identity: %w", err)
	}
	q := url.Values{}
	q.Set("iv", iv)
	q.Set("t", ct)
	return baseURL + "/createTempWorkspace?" + q.Encode(), nil
}

// seedDir stores every regular file under dir for workspace, skipping version-control metadata.
// Paths are stored relative to dir with '/' separators.
func seedDir(ctx context.Context, fsys afero.Fs, repo repository.Repository, workspace, dir string) (int, error) {
	n := 0
	err := afero.Walk(fsys, dir, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if info.IsDir() {
			if rel != "." && layout.IsVCS(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		content, err := afero.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		if err := repo.InsertFile(ctx, workspace, rel, content); err != nil {
			return fmt.Errorf("storing %s: %w", rel, err)
		}
		n++
		return nil
	})
	return n, err
}
