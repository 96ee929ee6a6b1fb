package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/mchmarny/georisk/pkg/auth"
)

const keyMaskVisibleChars = 4

var (
	authSourceFlag = &cli.StringFlag{
		Name:     "source",
		Aliases:  []string{"s"},
		Usage:    "Data source name (e.g. gdelt)",
		Required: true,
	}

	authKeyFlag = &cli.StringFlag{
		Name:  "key",
		Usage: "API key value (omit to enter interactively)",
	}

	authCmd = &cli.Command{
		Name:            "auth",
		HideHelpCommand: true,
		Usage:           "Manage API keys for data sources",
		Subcommands: []*cli.Command{
			{
				Name:   "set",
				Usage:  "Store an API key for a source",
				Action: cmdAuthSet,
				Flags: []cli.Flag{
					authSourceFlag,
					authKeyFlag,
				},
			},
			{
				Name:   "get",
				Usage:  "Show whether a source has a key configured",
				Action: cmdAuthGet,
				Flags: []cli.Flag{
					authSourceFlag,
				},
			},
			{
				Name:   "clear",
				Usage:  "Remove the stored API key for a source",
				Action: cmdAuthClear,
				Flags: []cli.Flag{
					authSourceFlag,
				},
			},
		},
	}
)

func cmdAuthSet(c *cli.Context) error {
	cfg := getConfig(c)
	src := c.String(authSourceFlag.Name)

	key := c.String(authKeyFlag.Name)
	if key == "" {
		fmt.Printf("Paste the API key for %s and hit enter:\n>", src)
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading key input: %w", err)
		}
		key = strings.TrimSpace(line)
	}
	if key == "" {
		return fmt.Errorf("key required")
	}

	if err := auth.SaveKey(cfg.HomeDir, src, key); err != nil {
		return fmt.Errorf("saving key for %s: %w", src, err)
	}

	fmt.Printf("Key saved for source %s\n", src)
	return nil
}

func cmdAuthGet(c *cli.Context) error {
	cfg := getConfig(c)
	src := c.String(authSourceFlag.Name)

	key, err := auth.GetKey(cfg.HomeDir, src)
	if err != nil {
		if errors.Is(err, auth.ErrNoKey) {
			fmt.Printf("No key configured for source %s\n", src)
			return nil
		}
		return fmt.Errorf("getting key for %s: %w", src, err)
	}

	fmt.Printf("Key configured for source %s: %s\n", src, maskKey(key))
	return nil
}

func cmdAuthClear(c *cli.Context) error {
	cfg := getConfig(c)
	src := c.String(authSourceFlag.Name)

	if err := auth.DeleteKey(cfg.HomeDir, src); err != nil {
		return fmt.Errorf("clearing key for %s: %w", src, err)
	}

	fmt.Printf("Key cleared for source %s\n", src)
	return nil
}

func maskKey(key string) string {
	if len(key) <= keyMaskVisibleChars {
		return strings.Repeat("*", len(key))
	}
	return key[:keyMaskVisibleChars] + strings.Repeat("*", len(key)-keyMaskVisibleChars)
}
