// Package config provides configuration parsing for vdiff.
//
// The configuration is stored in vdiff.json. This package handles loading,
// saving, and validating it. Missing fields take the values of New().
//
// # Configuration File Structure
//
//	{
//	  "server": {
//	    "host": "0.0.0.0",
//	    "port": 7070,
//	    "shutdownTimeout": "15s",
//	    "allowedOrigins": ["https://app.example.com"]
//	  },
//	  "session": {
//	    "maxSessions": 1024,
//	    "historySize": 64
//	  },
//	  "snapshot": {
//	    "backend": "s3",
//	    "bucket": "vdiff-snapshots",
//	    "region": "eu-west-1",
//	    "cacheSize": 256
//	  },
//	  "metrics": {"enabled": true, "namespace": "vdiff"},
//	  "tracing": {"enabled": false},
//	  "log": {"level": "info", "format": "json"}
//	}
package config
