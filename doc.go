// Package healthcore is the authorisation and records core of a
// health-records service. It issues durable national health identifiers,
// authorises every access to patient data through role- and consent-based
// rules, seals medical documents into an external content-addressed
// object store, and keeps an append-only audit log of every privileged
// read or write.
//
// The transport layer hands the core an authenticated caller identity and
// a typed command. The permission decision, the state transition, the
// envelope crypto and the audit append all happen here.
//
// Quick start:
//
//	svc, err := healthcore.New(ctx,
//	    healthcore.WithObjectStore(memstore.New()),
//	    healthcore.WithKeyProvider(keys),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := svc.Dispatch(ctx, callerID, healthcore.RegisterPatient{
//	    Profile: profile,
//	    RawID:   rawID,
//	    IDType:  healthcore.NationalIDTypeNIN,
//	})
package healthcore
