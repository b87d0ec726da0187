// Package credmon ties token endpoint resolution, the client credentials
// grant and token storage together for each configured identity provider.
//
// A provider is configured from CLIENT_CREDMON_<PROVIDER>_* environment
// variables (LoadProviderConfig). An Engine refreshes one token on demand;
// a Monitor drives an Engine over a list of identities on a fixed interval.
//
//	cfg, err := credmon.LoadProviderConfig("myidp", nil)
//	if err != nil {
//		return err
//	}
//	sink, err := tokensink.NewFileSink("/var/lib/condor/oauth_credentials",
//		tokensink.WithDefaultLifetime(cfg.DefaultTokenLifetime()))
//	if err != nil {
//		return err
//	}
//	engine, err := credmon.NewEngine(cfg, sink)
//	if err != nil {
//		return err
//	}
//	ok, err := engine.Refresh(ctx, "alice", cfg.DefaultTokenName())
package credmon
