// ABOUTME: Admin CLI for zero-gateway lockdown, device, and token management
// ABOUTME: Operates directly on the gateway database and local configuration

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/2389/zero-gateway/internal/authz"
	"github.com/2389/zero-gateway/internal/panicmode"
	"github.com/2389/zero-gateway/internal/store"
)

const banner = `
 _______ _ __ ___          __ _  __| |_ __ ___ (_)_ __
|_  / _ \ '__/ _ \ _____  / _' |/ _' | '_ ' _ \| | '_ \
 / /  __/ |  | (_) |_____| (_| | (_| | | | | | | | | | |
/___\___|_|   \___/       \__,_|\__,_|_| |_| |_|_|_| |_|
`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "status":
		err = cmdStatus()
	case "panic":
		err = cmdPanic(args)
	case "devices":
		err = cmdDevices(args)
	case "token":
		err = cmdToken(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: zero-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  status                  Show lockdown state and paired devices")
	fmt.Println("  panic [reason]          Activate emergency lockdown")
	fmt.Println("  panic --reset           Clear lockdown (requires ZERO_PANIC_RESET_KEY)")
	fmt.Println("  devices                 List paired devices")
	fmt.Println("  devices list            List paired devices")
	fmt.Println("  devices pair            Pair a new device")
	fmt.Println("  devices revoke <id>     Revoke a paired device")
	fmt.Println("  token create            Generate a JWT bearer token")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  ZERO_DB_PATH            Gateway database path (default: ~/.config/zero/gateway.db)")
	fmt.Println("  ZERO_JWT_SECRET         JWT signing secret (required for token create)")
	fmt.Println("  ZERO_PANIC_RESET_HASH   bcrypt hash of the panic reset key")
	fmt.Println("  ZERO_PANIC_RESET_KEY    Panic reset key (required for panic --reset)")
	fmt.Println()
	yellow.Println("Examples:")
	fmt.Println("  zero-admin panic 'credential leak suspected'")
	fmt.Println("  ZERO_PANIC_RESET_KEY=... zero-admin panic --reset")
	fmt.Println("  zero-admin devices pair --name 'workstation' --fingerprint <fp>")
	fmt.Println("  zero-admin token create --principal admin --ttl 30")
	fmt.Println()
}

// openStore opens the gateway database at ZERO_DB_PATH or the default path.
func openStore() (*store.SQLiteStore, error) {
	dbPath := os.Getenv("ZERO_DB_PATH")
	if dbPath == "" {
		configDir := os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("could not determine config directory: %w", err)
			}
			configDir = filepath.Join(homeDir, ".config")
		}
		dbPath = filepath.Join(configDir, "zero", "gateway.db")
	}

	db, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// openSwitch builds the lockdown switch over the database. The admin CLI has
// no session store; a running gateway adopts the persisted state change on
// its next maintenance sync.
func openSwitch(db *store.SQLiteStore) (*panicmode.Switch, error) {
	return panicmode.New(panicmode.Options{
		Store:        db,
		ResetKeyHash: os.Getenv("ZERO_PANIC_RESET_HASH"),
	})
}

// cmdStatus shows the current lockdown state and paired devices
func cmdStatus() error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	sw, err := openSwitch(db)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)

	cyan.Print(banner)
	fmt.Println()
	cyan.Println("  Lockdown")
	cyan.Println("  --------")

	state := sw.Current()
	if state.Active {
		color.Red("  State:    PANIC ACTIVE")
		fmt.Printf("  Since:    %s\n", state.ActivatedAt.Format(time.RFC3339))
		if state.Reason != "" {
			fmt.Printf("  Reason:   %s\n", state.Reason)
		}
	} else {
		green.Println("  State:    normal")
	}
	fmt.Println()

	return printDeviceList(db)
}

// cmdPanic activates or resets emergency lockdown
func cmdPanic(args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	sw, err := openSwitch(db)
	if err != nil {
		return err
	}

	if len(args) > 0 && args[0] == "--reset" {
		key := os.Getenv("ZERO_PANIC_RESET_KEY")
		if key == "" {
			return fmt.Errorf("ZERO_PANIC_RESET_KEY environment variable is required for --reset")
		}
		if err := sw.Reset(key); err != nil {
			return err
		}
		green := color.New(color.FgGreen)
		green.Println("✓ Lockdown cleared")
		fmt.Println("  Previously issued sessions are gone; clients must re-authenticate.")
		return nil
	}

	reason := strings.Join(args, " ")
	if err := sw.Activate(reason); err != nil {
		return err
	}

	color.Red("✓ PANIC MODE ACTIVATED")
	if reason != "" {
		fmt.Printf("  Reason: %s\n", reason)
	}
	fmt.Println("  All connections will be refused until reset.")
	fmt.Println("  Clear with: ZERO_PANIC_RESET_KEY=... zero-admin panic --reset")

	return nil
}

// cmdDevices handles device subcommands
func cmdDevices(args []string) error {
	// Default to list
	subcmd := "list"
	if len(args) > 0 {
		subcmd = args[0]
		args = args[1:]
	}

	switch subcmd {
	case "list", "ls":
		return cmdDevicesList()
	case "pair", "add":
		return cmdDevicesPair(args)
	case "revoke", "rm", "remove":
		return cmdDevicesRevoke(args)
	default:
		return fmt.Errorf("unknown devices subcommand: %s (use list, pair, revoke)", subcmd)
	}
}

// cmdDevicesList lists all paired devices
func cmdDevicesList() error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	return printDeviceList(db)
}

func printDeviceList(db *store.SQLiteStore) error {
	devices, err := db.ListDevices(context.Background())
	if err != nil {
		return fmt.Errorf("listing devices: %w", err)
	}

	cyan := color.New(color.FgCyan)
	cyan.Println("  Paired Devices")
	cyan.Println("  --------------")

	if len(devices) == 0 {
		fmt.Println("  (no devices paired)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tNAME\tFINGERPRINT\tSTATUS\tPAIRED")
	fmt.Fprintln(w, "  --\t----\t-----------\t------\t------")

	for _, d := range devices {
		status := "active"
		if d.Revoked() {
			status = "revoked"
		}
		id := truncate(d.ID, 12)
		name := truncate(d.Name, 24)
		fp := truncate(d.Fingerprint, 20)
		paired := d.PairedAt.Format("Jan 02 15:04")
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\n", id, name, fp, status, paired)
	}
	w.Flush()
	fmt.Println()

	return nil
}

// cmdDevicesPair pairs a new device
func cmdDevicesPair(args []string) error {
	// Parse args
	var name, fingerprint string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--name", "-n":
			if i+1 < len(args) {
				name = args[i+1]
				i++
			}
		case "--fingerprint", "--fp", "-f":
			if i+1 < len(args) {
				fingerprint = args[i+1]
				i++
			}
		}
	}

	if name == "" || fingerprint == "" {
		return fmt.Errorf("usage: devices pair --name <name> --fingerprint <fp>")
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	device := &store.Device{
		ID:          uuid.New().String(),
		Name:        name,
		Fingerprint: fingerprint,
		PairedAt:    time.Now().UTC(),
	}

	if err := db.PairDevice(context.Background(), device); err != nil {
		return fmt.Errorf("pairing device: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Paired device: %s\n", device.ID)
	fmt.Printf("  Name:        %s\n", device.Name)
	fmt.Printf("  Fingerprint: %s\n", device.Fingerprint)

	return nil
}

// cmdDevicesRevoke revokes a paired device
func cmdDevicesRevoke(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: devices revoke <device-id>")
	}

	deviceID := args[0]

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.RevokeDevice(context.Background(), deviceID); err != nil {
		return fmt.Errorf("revoking device: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Revoked device: %s\n", deviceID)

	return nil
}

// cmdToken handles token subcommands
func cmdToken(args []string) error {
	subcmd := ""
	if len(args) > 0 {
		subcmd = args[0]
		args = args[1:]
	}

	switch subcmd {
	case "create":
		return cmdTokenCreate(args)
	default:
		return fmt.Errorf("usage: token create --principal <id> [--ttl <days>]")
	}
}

// cmdTokenCreate signs a new JWT bearer token locally
func cmdTokenCreate(args []string) error {
	secret := os.Getenv("ZERO_JWT_SECRET")
	if secret == "" {
		return fmt.Errorf("ZERO_JWT_SECRET environment variable is required")
	}

	// Parse args
	var principalID string
	var ttlDays int64 = 30 // default 30 days

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--principal", "-p":
			if i+1 < len(args) {
				principalID = args[i+1]
				i++
			}
		case "--ttl", "-t":
			if i+1 < len(args) {
				days, err := parseIntArg(args[i+1])
				if err != nil {
					return fmt.Errorf("invalid ttl: %w", err)
				}
				ttlDays = days
				i++
			}
		}
	}

	if principalID == "" {
		return fmt.Errorf("usage: token create --principal <id> [--ttl <days>]")
	}

	verifier := authz.NewJWTVerifier([]byte(secret))
	ttl := time.Duration(ttlDays) * 24 * time.Hour
	token, err := verifier.Generate(principalID, ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)

	fmt.Println()
	green.Println("  Token created successfully")
	fmt.Println()
	cyan.Println("  Principal:  " + principalID)
	cyan.Println("  Expires:    " + time.Now().Add(ttl).UTC().Format(time.RFC3339))
	fmt.Println()
	fmt.Println("  Token (keep this secret!):")
	fmt.Println()
	fmt.Println("  " + token)
	fmt.Println()

	return nil
}

// parseIntArg parses a string to int64
func parseIntArg(s string) (int64, error) {
	var v int64
	_, err := fmt.Sscanf(s, "%d", &v)
	return v, err
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
