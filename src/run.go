package dtn

/*------------------------------------------------------------------
 *
 * Purpose:	Exported entry points for the command-line tools.
 *
 * Description:	Everything protocol-side is package-private; the mains
 *		under cmd/ drive a whole simulated world through the
 *		scenario runner here, and convert its track logs with
 *		Track2GPX.
 *
 *------------------------------------------------------------------*/

import (
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"strconv"

	"github.com/golang/geo/r2"
)

// ScenarioConfig describes one simulation run.  DefaultScenario gives a
// complete configuration to start from; RunScenario uses every field as
// given and does not replace zero values with defaults.
type ScenarioConfig struct {
	Seed        int64 `yaml:"seed"`
	DurationSec int64 `yaml:"duration_sec"`

	Nodes     int     `yaml:"nodes"`
	MapWidth  float64 `yaml:"map_width"`  /* metres */
	MapHeight float64 `yaml:"map_height"` /* metres */

	RangeUnits      int32 `yaml:"range_units"`
	BandwidthBPS    int64 `yaml:"bandwidth_bps"`
	PropagationUsec int64 `yaml:"propagation_usec"`

	SpeedUnitsPerSec float64 `yaml:"speed_units_per_sec"`
	PauseSec         int64   `yaml:"pause_sec"`

	TalkSec       int64 `yaml:"talk_sec"`
	MaxMessageLen int   `yaml:"max_message_len"`

	LogPath      string `yaml:"log_path"`
	LogDaily     bool   `yaml:"log_daily"`
	TrackEverySc int64  `yaml:"track_every_sec"`
}

// DefaultScenario is a small but non-trivial world: a dozen walkers
// on a square kilometre, talking every few seconds.
func DefaultScenario() ScenarioConfig {
	return ScenarioConfig{
		Seed:             1,
		DurationSec:      300,
		Nodes:            12,
		MapWidth:         1000,
		MapHeight:        1000,
		RangeUnits:       150,
		BandwidthBPS:     2000000,
		PropagationUsec:  500,
		SpeedUnitsPerSec: 2,
		PauseSec:         10,
		TalkSec:          3,
		MaxMessageLen:    4000,
	}
}

// ScenarioStats is what a run is scored on.
type ScenarioStats struct {
	Sent     int
	Received int
}

func (s ScenarioStats) DeliveryRatio() float64 {
	if s.Sent == 0 {
		return 0
	}
	return float64(s.Received) / float64(s.Sent)
}

/*-------------------------------------------------------------------
 *
 * Name:	RunScenario
 *
 * Purpose:	Build a simulated world from the config and run it to
 *		completion.
 *
 *--------------------------------------------------------------------*/

func RunScenario(cfg ScenarioConfig) (ScenarioStats, error) {
	var stats ScenarioStats

	if cfg.Nodes < 2 {
		return stats, fmt.Errorf("a scenario needs at least 2 nodes, got %d", cfg.Nodes)
	}

	var dlog, logErr = dtnlog_init(cfg.LogDaily, cfg.LogPath)
	if logErr != nil {
		return stats, logErr
	}
	defer dlog.close()

	var s = new_sim(cfg.Seed, radio_config_t{
		range_units:      cfg.RangeUnits,
		bandwidth_bps:    cfg.BandwidthBPS,
		propagation_usec: cfg.PropagationUsec,
	})

	var peers = make([]node_addr, cfg.Nodes)
	for i := range peers {
		peers[i] = node_addr(i + 1)
	}

	var placement = rand.New(rand.NewSource(cfg.Seed))
	var apps = make([]*fakeapp_t, cfg.Nodes)

	for i := range peers {
		var addr = peers[i]
		var start = r2.Point{
			X: placement.Float64() * cfg.MapWidth,
			Y: placement.Float64() * cfg.MapHeight,
		}

		apps[i] = fakeapp_init(peers, cfg.TalkSec*1000000, cfg.MaxMessageLen, dlog)

		var sn = s.add_node(addr, position_t{x: int32(start.X), y: int32(start.Y)}, apps[i], node_config_t{
			link: link_config_t{
				bandwidth_bps:    cfg.BandwidthBPS,
				propagation_usec: cfg.PropagationUsec,
			},
		})
		sn.dlog = dlog

		sn.start_walking(new_walker(
			rand.New(rand.NewSource(cfg.Seed^int64(addr)<<16)),
			cfg.MapWidth, cfg.MapHeight,
			cfg.SpeedUnitsPerSec, cfg.PauseSec*1000000,
			start,
		))

		apps[i].start(sn.node)

		if cfg.TrackEverySc > 0 {
			var node = sn
			var every = cfg.TrackEverySc * 1000000
			var tick func()
			tick = func() {
				dlog.log_position(node.addr, s.now, node.pos)
				s.after(every, tick)
			}
			s.after(every, tick)
		}
	}

	s.run_until(cfg.DurationSec * 1000000)

	for _, a := range apps {
		stats.Sent += a.sent_count
		stats.Received += a.received_count
	}

	return stats, nil
}

// MapRef is the exported face of the UTM anchor used when exporting
// tracks.
type MapRef struct {
	Zone           int
	South          bool
	OriginEasting  float64
	OriginNorthing float64
}

/*-------------------------------------------------------------------
 *
 * Name:	Track2GPX
 *
 * Purpose:	Convert "track" records from a scenario log into GPX.
 *
 * Description:	Reads the CSV emitted by dtnlog, keeps the track rows,
 *		groups them per node, and writes one <trk> per node.
 *
 *--------------------------------------------------------------------*/

type gpx_trkpt struct {
	Lat  string `xml:"lat,attr"`
	Lon  string `xml:"lon,attr"`
	Time string `xml:"time,omitempty"`
}

type gpx_trkseg struct {
	Points []gpx_trkpt `xml:"trkpt"`
}

type gpx_trk struct {
	Name    string     `xml:"name"`
	Segment gpx_trkseg `xml:"trkseg"`
}

type gpx_root struct {
	XMLName xml.Name  `xml:"gpx"`
	Version string    `xml:"version,attr"`
	Creator string    `xml:"creator,attr"`
	Tracks  []gpx_trk `xml:"trk"`
}

func Track2GPX(in io.Reader, out io.Writer, ref MapRef) error {
	var mref = map_ref_t{
		zone:            ref.Zone,
		south:           ref.South,
		origin_easting:  ref.OriginEasting,
		origin_northing: ref.OriginNorthing,
	}

	var reader = csv.NewReader(in)
	reader.FieldsPerRecord = -1

	var tracks = make(map[string][]gpx_trkpt)

	for {
		var record, readErr = reader.Read()
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("reading track log: %w", readErr)
		}
		if len(record) != 5 || record[0] != "track" {
			continue
		}

		var x, xErr = strconv.Atoi(record[3])
		var y, yErr = strconv.Atoi(record[4])
		if xErr != nil || yErr != nil {
			continue
		}

		var lat, lon, convErr = mref.to_latlng(position_t{x: int32(x), y: int32(y)})
		if convErr != nil {
			return fmt.Errorf("converting position: %w", convErr)
		}

		tracks[record[1]] = append(tracks[record[1]], gpx_trkpt{
			Lat: fmt.Sprintf("%.6f", lat),
			Lon: fmt.Sprintf("%.6f", lon),
		})
	}

	var names = make([]string, 0, len(tracks))
	for name := range tracks {
		names = append(names, name)
	}
	sort.Strings(names)

	var root = gpx_root{
		Version: "1.1",
		Creator: "mule",
	}
	for _, name := range names {
		root.Tracks = append(root.Tracks, gpx_trk{
			Name:    "node-" + name,
			Segment: gpx_trkseg{Points: tracks[name]},
		})
	}

	if _, err := io.WriteString(out, xml.Header); err != nil {
		return err
	}
	var enc = xml.NewEncoder(out)
	enc.Indent("", "  ")
	if err := enc.Encode(root); err != nil {
		return err
	}
	_, err := io.WriteString(out, "\n")
	return err
}
