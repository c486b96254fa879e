package classify

// envelopeOptions are generic command envelope fields that carry no query
// semantics. Every command schema ignores them.
var envelopeOptions = []FieldSpec{
	{Name: "lsid", Class: Ignored},
	{Name: "txnNumber", Class: Ignored},
	{Name: "autocommit", Class: Ignored},
	{Name: "startTransaction", Class: Ignored},
	{Name: "stmtId", Class: Ignored},
	{Name: "readOnce", Class: Ignored},
	{Name: "term", Class: Ignored},
	{Name: "writeConcern", Class: Ignored},
	{Name: "databaseVersion", Class: Ignored},
	{Name: "shardVersion", Class: Ignored},
	{Name: "mayBypassWriteBlocking", Class: Ignored},
	{Name: "includeQueryStatsMetrics", Class: Ignored},
	{Name: "encryptionInformation", Class: Ignored},
	{Name: "$clusterTime", Class: Ignored},
	{Name: "$readPreference", Class: Ignored},
	{Name: "$audit", Class: Ignored},
	{Name: "$client", Class: Ignored},
}

var findSchema = Schema{
	Command: "find",
	ShapeFields: []string{
		"cmdNs",
		"command",
		"filter",
		"sort",
		"projection",
		"skip",
		"limit",
		"singleBatch",
		"max",
		"min",
		"returnKey",
		"showRecordId",
		"tailable",
		"oplogReplay",
		"awaitData",
		"collation",
		"allowDiskUse",
		"let",
	},
	OuterFields: []string{
		QueryShapeField,
		"batchSize",
		"comment",
		"maxTimeMS",
		"noCursorTimeout",
		"readConcern",
		"allowPartialResults",
		"apiDeprecationErrors",
		"apiVersion",
		"apiStrict",
		"collectionType",
		"client",
		"hint",
	},
	Options: append([]FieldSpec{
		{Name: "find", Class: ShapeField, Target: "cmdNs"},
		{Name: "$db", Class: ShapeField, Target: "cmdNs"},
		{Name: "filter", Class: ShapeField},
		{Name: "sort", Class: ShapeField},
		{Name: "projection", Class: ShapeField},
		{Name: "skip", Class: ShapeField},
		{Name: "limit", Class: ShapeField},
		{Name: "singleBatch", Class: ShapeField},
		{Name: "max", Class: ShapeField},
		{Name: "min", Class: ShapeField},
		{Name: "returnKey", Class: ShapeField},
		{Name: "showRecordId", Class: ShapeField},
		{Name: "tailable", Class: ShapeField},
		{Name: "oplogReplay", Class: ShapeField},
		{Name: "awaitData", Class: ShapeField},
		{Name: "collation", Class: ShapeField},
		{Name: "allowDiskUse", Class: ShapeField},
		{Name: "let", Class: ShapeField},

		{Name: "batchSize", Class: OuterField},
		{Name: "comment", Class: OuterField},
		{Name: "maxTimeMS", Class: OuterField},
		{Name: "noCursorTimeout", Class: OuterField},
		{Name: "readConcern", Class: OuterField},
		{Name: "allowPartialResults", Class: OuterField},
		{Name: "apiDeprecationErrors", Class: OuterField},
		{Name: "apiVersion", Class: OuterField},
		{Name: "apiStrict", Class: OuterField},
		// hint names index key paths but is not part of the shape.
		{Name: "hint", Class: OuterField},
	}, envelopeOptions...),
	Derived: []string{"command", "collectionType", "client"},
}

// builtinSchemas is the table DefaultRegistry is built from.
var builtinSchemas = []Schema{
	findSchema,
}
