package dtn

/*------------------------------------------------------------------
 *
 * Purpose:	Save delivery and track records to a log file.
 *
 * Description:	CSV rather than anything cryptic, for easy reading and
 *		later processing (mule-track2gpx consumes the track
 *		records).
 *
 *		There are two alternatives here.
 *
 *		A full file path - everything goes to that one file.
 *
 *		A directory - daily names are created inside it.
 *
 *		The file is kept open between records; we don't
 *		open/close for every new item.
 *
 *------------------------------------------------------------------*/

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"
)

type dtn_log_t struct {
	daily_names bool
	path        string /* directory when daily_names, else full name */

	fp         *os.File
	csv        *csv.Writer
	open_fname string /* currently open file, daily mode only */

	log *log.Logger
}

/*-------------------------------------------------------------------
 *
 * Name:	dtnlog_init
 *
 * Purpose:	Initialization at start of application.
 *
 * Inputs:	daily_names	- true if path is a directory in which
 *				  daily file names should be created.
 *		path		- log file name, or just a directory.
 *				  Empty string disables the feature.
 *
 *--------------------------------------------------------------------*/

func dtnlog_init(daily_names bool, path string) (*dtn_log_t, error) {
	var dl = &dtn_log_t{
		daily_names: daily_names,
		log:         log.Default().WithPrefix("dtnlog"),
	}

	if len(path) == 0 {
		return dl, nil
	}

	if daily_names {
		var stat, statErr = os.Stat(path)
		if statErr == nil && !stat.IsDir() {
			return nil, fmt.Errorf("log location %q is not a directory", path)
		}
		if statErr != nil {
			if mkdirErr := os.Mkdir(path, 0755); mkdirErr != nil {
				return nil, fmt.Errorf("creating log location: %w", mkdirErr)
			}
		}
		dl.path = path
		return dl, nil
	}

	var fp, openErr = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if openErr != nil {
		return nil, fmt.Errorf("opening log file: %w", openErr)
	}
	dl.path = path
	dl.fp = fp
	dl.csv = csv.NewWriter(fp)
	return dl, nil
}

/* Ensure the right file is open, rolling over at midnight in daily
   mode. */
func (dl *dtn_log_t) writer() *csv.Writer {
	if len(dl.path) == 0 {
		return nil
	}

	if dl.daily_names {
		var fname, ftErr = strftime.Format("%Y-%m-%d.log", time.Now())
		if ftErr != nil {
			return nil
		}
		if fname != dl.open_fname {
			if dl.fp != nil {
				dl.csv.Flush()
				dl.fp.Close()
			}
			var full = filepath.Join(dl.path, fname)
			var fp, openErr = os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
			if openErr != nil {
				dl.log.Error("could not open log file", "path", full, "err", openErr)
				return nil
			}
			dl.fp = fp
			dl.csv = csv.NewWriter(fp)
			dl.open_fname = fname
		}
	}

	return dl.csv
}

func (dl *dtn_log_t) write(record []string) {
	var w = dl.writer()
	if w == nil {
		return
	}
	if err := w.Write(record); err != nil {
		dl.log.Error("log write failed", "err", err)
		return
	}
	w.Flush()
}

/* One record per message handed to the transport layer. */
func (dl *dtn_log_t) log_sent(node node_addr, id int32, recipient node_addr, at_usec int64) {
	dl.write([]string{
		"sent",
		fmt.Sprintf("%d", node),
		fmt.Sprintf("%d", recipient),
		fmt.Sprintf("%d", id),
		fmt.Sprintf("%d", at_usec),
	})
}

/* One record per message delivered to the application. */
func (dl *dtn_log_t) log_received(node node_addr, id int32, sender node_addr, at_usec int64) {
	dl.write([]string{
		"received",
		fmt.Sprintf("%d", node),
		fmt.Sprintf("%d", sender),
		fmt.Sprintf("%d", id),
		fmt.Sprintf("%d", at_usec),
	})
}

/* Position samples, for track export. */
func (dl *dtn_log_t) log_position(node node_addr, at_usec int64, pos position_t) {
	dl.write([]string{
		"track",
		fmt.Sprintf("%d", node),
		fmt.Sprintf("%d", at_usec),
		fmt.Sprintf("%d", pos.x),
		fmt.Sprintf("%d", pos.y),
	})
}

func (dl *dtn_log_t) close() {
	if dl.fp != nil {
		dl.csv.Flush()
		dl.fp.Close()
		dl.fp = nil
	}
}
