package terrain

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yushimatenjin/gaea-mcp/pkg/tree"
)

// AppVersion is the application version recorded in new projects.
const AppVersion = "2.0.6.0"

// TimestampLayout is the layout of every date stored in a project file:
// second precision, a space between date and time, and a trailing zone
// marker.
const TimestampLayout = "2006-01-02 15:04:05Z"

// FormatTimestamp renders t in [TimestampLayout] as UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// CreateEmpty returns a new project with no nodes, a single graph tab and
// all timestamps set to now.
func CreateEmpty(now time.Time) *Document {
	alloc := &Allocator{next: 1}
	ts := tree.String(FormatTimestamp(now))
	projectID := uuid.New()

	id := func() tree.String { return tree.String(alloc.Next()) }
	obj := func() *tree.Object { return tree.NewObject().Set(tree.KeyID, id()) }
	list := func() *tree.Object { return tree.NewList(alloc.Next()) }

	root := obj()
	assets := obj()
	root.Set(keyAssets, assets)
	asset := obj()
	assets.Set(tree.KeyValues, tree.NewArray(asset))

	graph := obj()
	asset.Set(keyGraph, graph)
	graph.Set("Id", tree.String(projectID.String()))
	graph.Set(keyMetadata, obj().
		Set("Name", tree.String("")).
		Set("Description", tree.String("")).
		Set("Version", tree.String(AppVersion)).
		Set("DateCreated", ts).
		Set("DateLastBuilt", ts).
		Set(keyDateSaved, ts))
	graph.Set(keyNodes, obj())
	graph.Set("Groups", obj())
	graph.Set("Notes", obj())

	tabs := obj()
	graph.Set("GraphTabs", tabs)
	tab := obj().
		Set("Name", tree.String("Graph 1")).
		Set("Color", tree.String("Brass")).
		Set("ZoomFactor", tree.Float(0.5))
	tab.Set("ViewportLocation", obj().
		Set("X", tree.Float(25000)).
		Set("Y", tree.Float(25000)))
	tabs.Set(tree.KeyValues, tree.NewArray(tab))

	graph.Set("Width", tree.Float(5000))
	graph.Set("Height", tree.Float(2500))
	graph.Set("Ratio", tree.Float(0.5))
	graph.Set("Regions", list())

	automation := obj()
	asset.Set("Automation", automation)
	automation.Set("Bindings", list())
	automation.Set("Expressions", obj())
	automation.Set("VariablesEx", obj())
	automation.Set("Variables", obj())

	build := obj()
	asset.Set(keyBuildDef, build)
	build.Set("Type", tree.String("Standard")).
		Set("Destination", tree.String(`<Builds>\[Filename]\[+++]`)).
		Set("Resolution", tree.Int(2048)).
		Set("BakeResolution", tree.Int(2048)).
		Set("TileResolution", tree.Int(1024)).
		Set("BucketResolution", tree.Int(2048)).
		Set("BucketCount", tree.Int(1)).
		Set("WorldResolution", tree.Int(2048)).
		Set("NumberOfTiles", tree.Int(3)).
		Set("TotalTiles", tree.Int(9)).
		Set("BucketSizeWithMargin", tree.Int(3072)).
		Set("EdgeBlending", tree.Float(0.25)).
		Set("EdgeSize", tree.Int(512)).
		Set("TileZeroIndex", tree.Bool(true)).
		Set("TilePattern", tree.String("_y%Y%_x%X%")).
		Set("OrganizeFiles", tree.String("NodeSubFolder")).
		Set("Regions", list()).
		Set("ColorSpace", tree.String("sRGB"))

	state := obj()
	asset.Set(keyState, state)
	state.Set("BakeResolution", tree.Int(2048)).
		Set("PreviewResolution", tree.Int(512)).
		Set(keySelected, tree.Int(NoSelection)).
		Set("NodeBookmarks", list())
	viewport := obj()
	state.Set("Viewport", viewport)
	viewport.Set("Camera", obj()).
		Set("RenderMode", tree.String("Realistic")).
		Set("SunAltitude", tree.Float(33)).
		Set("SunAzimuth", tree.Float(45)).
		Set("SunIntensity", tree.Float(1)).
		Set("AmbientOcclusion", tree.Bool(true)).
		Set("Shadows", tree.Bool(true)).
		Set("AirDensity", tree.Float(1)).
		Set("AmbientIntensity", tree.Float(1)).
		Set("Exposure", tree.Float(1)).
		Set("FogDensity", tree.Float(0.2)).
		Set("GroundBrightness", tree.Float(0.8)).
		Set("Haze", tree.Float(1)).
		Set("Ozone", tree.Float(1))

	asset.Set("BuildProfiles", obj())

	root.Set("Id", tree.String(strings.SplitN(projectID.String(), "-", 2)[0]))
	root.Set("Branch", tree.Int(1))
	root.Set(keyMetadata, obj().
		Set("Name", tree.String("")).
		Set("Description", tree.String("")).
		Set("Version", tree.String(AppVersion)).
		Set("Owner", tree.String("")).
		Set("DateCreated", ts).
		Set("DateLastBuilt", ts).
		Set(keyDateSaved, ts).
		Set("ModifiedVersion", tree.String(AppVersion)))

	d, err := fromValue(root)
	if err != nil {
		panic("terrain: invalid skeleton: " + err.Error())
	}
	return d
}
