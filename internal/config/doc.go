// Package config loads and validates specview configuration.
//
// # Configuration Sources
//
// Configuration is assembled from the following sources, later ones winning:
//
//  1. Built-in defaults (Default)
//  2. A YAML file: the --config path, or specview.yaml, config.yaml,
//     configs/config.yaml in the working directory
//  3. A .env file in the working directory (never overrides the process env)
//  4. Environment variables
//
// # Environment Variables
//
// Variables are namespaced SPECVIEW_<SECTION>_<FIELD>:
//
//	SPECVIEW_SERVER_PORT=8080
//	SPECVIEW_LOGGING_LEVEL=debug
//	SPECVIEW_SELECTION_SIGNAL=pl0-pl486
//	SPECVIEW_SELECTION_FORMULA=(S-(BG1+BG2)/2)/I0
//	SPECVIEW_CACHE_SIZE=64
//
// # Validation
//
// Load rejects out-of-range ports and timeouts, unknown log levels, a blank
// signal pattern and a default formula that does not parse.
package config
