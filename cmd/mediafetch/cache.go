package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mediafetch/internal/cache"
	"mediafetch/pkg/ui"
)

var assumeYes bool

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and reset the fetch cache",
	Long: `The fetch cache records, per collection key, every URL that was fetched
successfully. Clearing a key makes the next fetch of that collection download
everything again.`,
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List collection keys with their fetched URL counts",
	Args:  cobra.NoArgs,
	RunE:  runCacheList,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear <key>",
	Short: "Forget every fetched URL of one collection",
	Args:  cobra.ExactArgs(1),
	RunE:  runCacheClear,
}

var cacheClearAllCmd = &cobra.Command{
	Use:   "clear-all",
	Short: "Forget every fetched URL of every collection",
	Args:  cobra.NoArgs,
	RunE:  runCacheClearAll,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheListCmd, cacheClearCmd, cacheClearAllCmd)
	cacheCmd.PersistentFlags().StringVar(&cacheBackend, "cache-backend", "", "fetch cache backend (text, sqlite, bolt)")
	cacheClearAllCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation")
}

func openCache(cmd *cobra.Command) (cache.Store, error) {
	cfg, err := loadConfig(cmd, map[string]interface{}{"cache-backend": cacheBackend}, false)
	if err != nil {
		return nil, err
	}
	return cache.Open(cfg.Cache)
}

func runCacheList(cmd *cobra.Command, args []string) error {
	store, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	return listKeys(cmd.Context(), store, cmd.OutOrStdout())
}

func listKeys(ctx context.Context, store cache.Store, out io.Writer) error {
	keys, err := store.Keys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		fmt.Fprintln(out, "No collections cached")
		return nil
	}
	for _, key := range keys {
		urls, err := store.Load(ctx, key)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		fmt.Fprintf(out, "%-40s %s URLs\n", key, humanize.Comma(int64(len(urls))))
	}
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	store, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Clear(cmd.Context(), args[0]); err != nil {
		return err
	}
	ui.PrintSuccess("Cleared " + args[0])
	return nil
}

func runCacheClearAll(cmd *cobra.Command, args []string) error {
	if !assumeYes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "Forget every fetched URL of every collection?") {
		ui.PrintWarning("Aborted")
		return nil
	}

	store, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.ClearAll(cmd.Context()); err != nil {
		return err
	}
	ui.PrintSuccess("Cache cleared")
	return nil
}

// confirm asks a yes/no question; anything but y or yes is a no
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	answer, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
