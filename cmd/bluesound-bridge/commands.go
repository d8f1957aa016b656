package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-bluesound/internal/bluos"
	"github.com/nerrad567/gray-logic-bluesound/internal/bridges/bluesound"
	"github.com/nerrad567/gray-logic-bluesound/internal/device"
	"github.com/nerrad567/gray-logic-bluesound/internal/discovery"
	"github.com/nerrad567/gray-logic-bluesound/internal/infrastructure/config"
)

// statusRequestTimeout bounds the status command's API call.
const statusRequestTimeout = 10 * time.Second

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bluesound-bridge %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

func newDiscoverCommand(configPath *string) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Browse the local network for BluOS players",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("timeout") {
				if cfg, err := config.Load(*configPath); err == nil {
					timeout = time.Duration(cfg.Discovery.Timeout) * time.Second
				}
			}
			scanner, err := discovery.NewScanner(discovery.Options{Timeout: timeout})
			if err != nil {
				return err
			}
			return runDiscover(cmd.Context(), cmd.OutOrStdout(), scanner)
		},
	}
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 5*time.Second, "browse window")
	return cmd
}

func newStatusCommand(configPath *string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show speakers managed by a running bridge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				cfg, err := config.Load(*configPath)
				if err != nil {
					return fmt.Errorf("loading configuration: %w", err)
				}
				addr = apiAddress(cfg.API)
			}
			return runStatus(cmd.Context(), cmd.OutOrStdout(), "http://"+addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "API host:port (defaults to the configured API address)")
	return cmd
}

// candidateScanner runs one browse. *discovery.Scanner satisfies it.
type candidateScanner interface {
	Scan(ctx context.Context) ([]discovery.Candidate, error)
}

// runDiscover prints the players found by one browse.
func runDiscover(ctx context.Context, out io.Writer, scanner candidateScanner) error {
	found, err := scanner.Scan(ctx)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		fmt.Fprintln(out, "no BluOS players found")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tADDRESS\tPORT")
	for _, c := range found {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", c.Name, c.Address, c.Port)
	}
	return tw.Flush()
}

// apiAddress returns the host:port a local client should dial for the API.
func apiAddress(cfg config.APIConfig) string {
	host := cfg.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, strconv.Itoa(cfg.Port))
}

type devicesResponse struct {
	Devices []bluesound.DeviceStatus `json:"devices"`
	Count   int                      `json:"count"`
}

// runStatus fetches the device list from a running bridge and prints it.
func runStatus(ctx context.Context, out io.Writer, baseURL string) error {
	ctx, cancel := context.WithTimeout(ctx, statusRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/v1/devices", nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("contacting bridge: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bridge returned %s", resp.Status)
	}

	var body devicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tENDPOINT\tMODE\tSTATE\tVOLUME\tNOW PLAYING")
	for _, d := range body.Devices {
		endpoint := net.JoinHostPort(d.Device.Address, strconv.Itoa(d.Device.Port))
		state := "unreachable"
		if d.State.Available {
			state = string(d.State.Transport)
		}
		playing := ""
		if d.State.Artist != "" || d.State.Track != "" {
			playing = d.State.Artist + " - " + d.State.Track
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.0f%%\t%s\n",
			d.Device.ID, d.Device.Name, endpoint, d.Mode, state, d.State.Volume*100, playing)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d speaker(s)\n", body.Count)
	return nil
}

// identityFetcher reads a player's identity. *bluos.Client satisfies it.
type identityFetcher interface {
	SyncStatus(ctx context.Context, address string, port int) (bluos.Identity, error)
}

// speakerRegistrar is the subset of *bluesound.Bridge discovery drives.
type speakerRegistrar interface {
	AnnounceDiscovery(found []bluesound.DiscoveredSpeaker) error
	Register(ctx context.Context, dev *device.Device) error
}

// endpointLookup is the subset of *device.Registry discovery reads.
type endpointLookup interface {
	FindByEndpoint(address string, port int) (device.Device, bool)
}

// discoveryWatcher announces each browse result and, with autoAdd,
// registers players that are not yet managed.
type discoveryWatcher struct {
	bridge   speakerRegistrar
	registry endpointLookup
	identity identityFetcher
	autoAdd  bool
	log      bluesound.Logger
}

func (w *discoveryWatcher) handle(ctx context.Context, found []discovery.Candidate) {
	speakers := make([]bluesound.DiscoveredSpeaker, 0, len(found))
	var unseen []discovery.Candidate
	for _, c := range found {
		s := bluesound.DiscoveredSpeaker{Name: c.Name, Address: c.Address, Port: c.Port}
		if dev, ok := w.registry.FindByEndpoint(c.Address, c.Port); ok {
			s.DeviceID = dev.ID
		} else {
			unseen = append(unseen, c)
		}
		speakers = append(speakers, s)
	}

	if err := w.bridge.AnnounceDiscovery(speakers); err != nil {
		w.log.Warn("announcing discovery failed", "error", err)
	}

	if !w.autoAdd {
		return
	}
	for _, c := range unseen {
		dev := &device.Device{Name: w.playerName(ctx, c), Address: c.Address, Port: c.Port}
		if err := w.bridge.Register(ctx, dev); err != nil {
			if !errors.Is(err, device.ErrDeviceExists) {
				w.log.Error("auto-adding speaker failed", "address", c.Endpoint(), "error", err)
			}
			continue
		}
		w.log.Info("speaker auto-added", "id", dev.ID, "name", dev.Name, "address", c.Endpoint())
	}
}

// playerName prefers the name the player reports over its mDNS instance name.
func (w *discoveryWatcher) playerName(ctx context.Context, c discovery.Candidate) string {
	if w.identity == nil {
		return c.Name
	}
	id, err := w.identity.SyncStatus(ctx, c.Address, c.Port)
	if err != nil || id.Name == "" {
		w.log.Debug("using mDNS name for speaker", "address", c.Endpoint(), "error", err)
		return c.Name
	}
	return id.Name
}
