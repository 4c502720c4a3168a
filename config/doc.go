// Package config loads service configuration with Viper.
//
// Values come from cmd/<service>/config.yml, then a .env file found next to
// it or in the working directory, then the process environment. Environment
// variables bind to nested keys by splitting on underscores, so
// LIVEKIT_API_SECRET populates livekit.api_secret.
//
//	var cfg Config
//	if err := config.LoadConfig("medscribe", &cfg); err != nil {
//	    return err
//	}
package config
