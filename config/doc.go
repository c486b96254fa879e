// Package config loads the query stats configuration from YAML.
//
// Keys absent from a file keep their Default values:
//
//	store:
//	  capacity: 10000
//	  shards: 16
//	  max_idle: 1h
//	sampling:
//	  ratio: 1
//	  rate: 100
//	  breaker:
//	    max_failures: 5
//	    reset_timeout: 30s
//	strict: false
//	observe:
//	  service_name: querystats
//	  metrics: {enabled: true, exporter: prometheus}
//	  logging: {enabled: true, level: info}
//	server:
//	  addr: ":8080"
package config
