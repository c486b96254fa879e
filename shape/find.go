package shape

var findTable = Table{
	"filter":       document("filter", Filter),
	"sort":         document("sort", Sort),
	"projection":   document("projection", Projection),
	"skip":         count("skip"),
	"limit":        count("limit"),
	"singleBatch":  flag("singleBatch"),
	"max":          document("max", KeyBounds),
	"min":          document("min", KeyBounds),
	"returnKey":    flag("returnKey"),
	"showRecordId": flag("showRecordId"),
	"tailable":     flag("tailable"),
	"oplogReplay":  flag("oplogReplay"),
	"awaitData":    flag("awaitData"),
	"collation":    document("collation", StructuralDocument),
	"allowDiskUse": flag("allowDiskUse"),
	"let":          document("let", Let),
}
