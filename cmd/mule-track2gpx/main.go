/* Convert a scenario log's track records to GPX. */
package main

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	dtn "github.com/doismellburning/mule/src"
)

func main() {
	var zone = pflag.IntP("zone", "z", 30, "UTM zone of the map anchor, 1 thru 60.")
	var south = pflag.BoolP("south", "s", false, "Map anchor is in the southern hemisphere.")
	var easting = pflag.Float64P("easting", "e", 500000, "Easting of the map origin in metres.")
	var northing = pflag.Float64P("northing", "n", 4000000, "Northing of the map origin in metres.")

	pflag.Parse()

	var in = os.Stdin
	if pflag.NArg() == 1 {
		var f, openErr = os.Open(pflag.Arg(0))
		if openErr != nil {
			log.Fatal("Can't open log file.", "path", pflag.Arg(0), "err", openErr)
		}
		defer f.Close()
		in = f
	}

	var ref = dtn.MapRef{
		Zone:           *zone,
		South:          *south,
		OriginEasting:  *easting,
		OriginNorthing: *northing,
	}

	if err := dtn.Track2GPX(in, os.Stdout, ref); err != nil {
		log.Fatal("Conversion failed.", "err", err)
	}
}
