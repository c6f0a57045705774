// Package process supervises the external hardware helper.
//
// The helper owns the Bluetooth side of the controllers and publishes raw
// samples to wiimote/raw/{slot}. When the bridge is configured to launch it,
// a Supervisor starts the helper, forwards its output to the log and
// restarts it with exponential backoff when it exits.
//
//	sup := process.NewSupervisor(process.Config{
//	    Name:   "wiimote-helper",
//	    Binary: "/usr/local/bin/wiimote-helper",
//	    Args:   []string{"--broker", "tcp://localhost:1883"},
//	})
//	if err := sup.Start(ctx); err != nil {
//	    return err
//	}
//	defer sup.Stop()
package process
