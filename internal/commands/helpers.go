package commands

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"btscout/internal/ble"
	"btscout/internal/scan"
	"btscout/internal/util"
)

// PrintBanner prints a section title between heavy rules.
func PrintBanner(title string) {
	rule := strings.Repeat("=", 60)
	fmt.Println(rule)
	fmt.Println(title)
	fmt.Println(rule)
}

// FormatRSSI renders a signal level, or N/A when the scan never measured
// one.
func FormatRSSI(rssi int16) string {
	if rssi == 0 {
		return "N/A"
	}
	return strconv.Itoa(int(rssi))
}

// DeviceTable renders the numbered table from a scan pass, strongest
// signal first.
func DeviceTable(devices []scan.Device) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-4s %-28s %-20s %s\n", "#", "Name", "Address", "RSSI dBm")
	fmt.Fprintf(&b, "%-4s %-28s %-20s %s\n",
		strings.Repeat("-", 4), strings.Repeat("-", 28), strings.Repeat("-", 20), strings.Repeat("-", 8))
	for i, d := range devices {
		name := d.Name
		if name == "" {
			name = "Unknown"
		}
		fmt.Fprintf(&b, "%-4d %-28s %-20s %s\n", i+1, util.Truncate(name, 28), d.Address, FormatRSSI(d.RSSI))
	}
	return b.String()
}

// PrintJSON pretty-prints v as indented JSON.
func PrintJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// ConfirmAction prompts the user to type 'yes' to continue.
// Returns true if confirmed, false otherwise.
func ConfirmAction(prompt string) bool {
	fmt.Print(prompt)

	reader := bufio.NewReader(os.Stdin)
	confirm, _ := reader.ReadString('\n')
	confirm = strings.TrimSpace(confirm)

	return confirm == "yes"
}

// parseSelection interprets one line of the device prompt. ok is false
// when the input is neither 'q' nor a number in [1, count].
func parseSelection(input string, count int) (idx int, quit, ok bool) {
	input = strings.TrimSpace(input)
	if strings.EqualFold(input, "q") {
		return 0, true, true
	}
	n, err := strconv.Atoi(input)
	if err != nil || n < 1 || n > count {
		return 0, false, false
	}
	return n - 1, false, true
}

func printNoDevices() {
	fmt.Println("[!] No devices found")
	fmt.Println("[*] Troubleshooting:")
	fmt.Println("      - Make sure Bluetooth is enabled on this machine")
	fmt.Println("      - Put the target device in discoverable/pairing mode")
	fmt.Println("      - Move closer to the device")
	fmt.Println("      - Check adapter permissions (bluetooth group or capabilities)")
}

func printConnectFailure(err error) {
	fmt.Printf("[!] Connection failed: %v\n", err)
	if errors.Is(err, ble.ErrBreakerOpen) {
		fmt.Println("[*] Repeated failures for this device; backing off for a while")
		return
	}
	fmt.Println("[*] The device may be connected or bonded to another host")
	fmt.Println("[*] Move closer and try again; many devices accept only one connection")
}

// stdinIsTTY reports whether stdin is an interactive terminal, which
// gates the selection prompt loop.
func stdinIsTTY() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
