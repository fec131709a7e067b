package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/vbng/control-plane/aaa"
	"github.com/vbng/control-plane/cli"
	"github.com/vbng/control-plane/config"
	"github.com/vbng/control-plane/forwarder"
	"github.com/vbng/control-plane/ipcp"
	"github.com/vbng/control-plane/lcp"
	"github.com/vbng/control-plane/logging"
	"github.com/vbng/control-plane/pppoe"
	"github.com/vbng/control-plane/reactor"
	"github.com/vbng/control-plane/registry"
	"github.com/vbng/control-plane/session"
	"github.com/vbng/control-plane/wire"
)

func main() {
	configPath := flag.String("config", "/etc/vbngd/vbngd.yaml", "path to the daemon's YAML configuration")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "vbngd:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	root := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Pretty)
	mainLog := logging.For(root, logging.Main)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	egress := reactor.NewEgressQueues(256, logging.For(root, logging.Packet))

	pool, err := buildPool(cfg)
	if err != nil {
		return fmt.Errorf("failed to build address pool: %w", err)
	}
	aaaClient := aaa.NewMemoryClient(pool)

	localMAC, err := interfaceMAC(cfg.Uplink.Interface)
	if err != nil {
		return fmt.Errorf("failed to read uplink MAC address: %w", err)
	}

	// engine is allocated before the reactor because the reactor's
	// handler is fixed at construction time; engine.HandleIngress is a
	// method value bound to this pointer, so the fields below can be
	// filled in afterward.
	engine := &Engine{
		egress:   egress,
		fwd:      forwarder.NewLinuxAdapter(logging.For(root, logging.Main)),
		aaaC:     aaaClient,
		localMAC: localMAC,
		lcpCfg: lcp.Config{
			MRU:          cfg.LCP.MRU,
			MagicEnabled: cfg.LCP.MagicNumber,
			Auth:         lcp.AuthCHAP,
		},
		ipcpCfg: ipcp.Config{
			DNS1: net.ParseIP(cfg.IPCP.DNS1),
			DNS2: net.ParseIP(cfg.IPCP.DNS2),
		},
		chapName: cfg.Uplink.Interface,
		log:      logging.For(root, logging.PPP),
	}
	fwd := engine.fwd

	r := reactor.New(engine.HandleIngress, logging.For(root, logging.Main), 256)
	engine.reactor = r

	reg := registry.New(r, aaaStopperAdapter{client: aaaClient}, logging.For(root, logging.Session))
	engine.registry = reg

	uplinkIfindex, ok := fwd.GetIfaceByName(ctx, cfg.Uplink.Interface)
	if !ok {
		return fmt.Errorf("uplink interface %s not found", cfg.Uplink.Interface)
	}

	pppoedPolicy := pppoe.Policy{
		ACName:            firstACName(cfg),
		ServiceNames:      cfg.PPPoE.ServiceNames,
		IgnoreServiceName: cfg.PPPoE.IgnoreServiceName,
		InsertCookie:      cfg.PPPoE.InsertCookie,
	}
	engine.pppoed = pppoe.NewHandler(pppoedPolicy, reg, engine.buildSession, logging.For(root, logging.PPPoED))

	xdpReader, err := forwarder.NewXDPReader(uplinkIfindex, cfg.Uplink.QueueCount, logging.For(root, logging.Main))
	if err != nil {
		return fmt.Errorf("failed to attach xdp reader to %s: %w", cfg.Uplink.Interface, err)
	}
	for q := 0; q < cfg.Uplink.QueueCount; q++ {
		if err := xdpReader.OpenQueue(q); err != nil {
			return fmt.Errorf("failed to open xdp queue %d: %w", q, err)
		}
	}

	backend := &controlBackend{registry: reg, uplinkName: cfg.Uplink.Interface}
	cliServer, err := cli.NewServer(cfg.Control.SocketPath, backend, logging.For(root, logging.Main))
	if err != nil {
		return fmt.Errorf("failed to start control socket: %w", err)
	}

	go r.Run(ctx)
	go ingressPump(ctx, xdpReader, r, cfg.Uplink.QueueCount, mainLog)
	go egressPump(ctx, xdpReader, egress, mainLog)
	go func() {
		if err := cliServer.Serve(); err != nil {
			mainLog.Warn().Err(err).Msg("control socket server stopped")
		}
	}()

	mainLog.Info().Str("uplink", cfg.Uplink.Interface).Msg("vbngd started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	mainLog.Info().Msg("shutting down")
	cancel()
	_ = cliServer.Close()
	reg.Shutdown()
	_ = aaaClient.StopAll(context.Background())
	_ = xdpReader.Close()
	return nil
}

func buildPool(cfg *config.Config) (*aaa.PoolAllocator, error) {
	if len(cfg.VRFs) == 0 {
		return nil, nil
	}
	vrf := cfg.VRFs[0]
	if vrf.PoolStart == "" || vrf.PoolEnd == "" {
		return nil, nil
	}
	return aaa.NewPoolAllocator(net.ParseIP(vrf.PoolStart), net.ParseIP(vrf.PoolEnd))
}

func firstACName(cfg *config.Config) string {
	if len(cfg.PPPoE.VLANPolicies) > 0 {
		return cfg.PPPoE.VLANPolicies[0].ACName
	}
	return "vbng"
}

func interfaceMAC(name string) (net.HardwareAddr, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, err
	}
	return iface.HardwareAddr, nil
}

// ingressPump polls every open AF_XDP queue and classifies each frame by
// EtherType before handing it to the reactor.
func ingressPump(ctx context.Context, reader *forwarder.XDPReader, r *reactor.Reactor, queues int, log zerolog.Logger) {
	for q := 0; q < queues; q++ {
		go func(queueID int) {
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}
				frames, err := reader.Poll(queueID)
				if err != nil {
					log.Debug().Err(err).Int("queue", queueID).Msg("xdp poll error")
					continue
				}
				for _, raw := range frames {
					deliverFrame(r, raw)
				}
			}
		}(q)
	}
}

func deliverFrame(r *reactor.Reactor, raw []byte) {
	encap, offset, err := wire.ParseEthernetHeader(raw)
	if err != nil {
		return
	}
	payload := raw[offset:]

	sessEncap := session.Encap{
		SrcMAC:    encap.SrcMAC,
		DstMAC:    encap.DstMAC,
		OuterVLAN: encap.OuterVLAN,
		InnerVLAN: encap.InnerVLAN,
		EtherType: encap.EtherType,
	}

	switch encap.EtherType {
	case wire.EtherTypePPPoEDiscovery:
		r.Deliver(reactor.IngressFrame{Encap: sessEncap, Payload: payload, Kind: reactor.KindDiscovery})
	case wire.EtherTypePPPoESession:
		r.Deliver(reactor.IngressFrame{Encap: sessEncap, Payload: payload, Kind: reactor.KindSession})
	}
}

// egressPump drains both egress queues and transmits on queue 0; the
// uplink's other queues are ingress-only in this deployment shape.
func egressPump(ctx context.Context, reader *forwarder.XDPReader, egress *reactor.EgressQueues, log zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-egress.Discovery:
			if err := reader.Transmit(0, [][]byte{frame}); err != nil {
				log.Warn().Err(err).Msg("failed to transmit discovery frame")
			}
		case frame := <-egress.Session:
			if err := reader.Transmit(0, [][]byte{frame}); err != nil {
				log.Warn().Err(err).Msg("failed to transmit session frame")
			}
		}
	}
}

// aaaStopperAdapter satisfies registry.AAAStopper on top of aaa.Client's
// context/error-returning Stop: the registry's deallocation path has no
// context of its own and treats accounting teardown as best-effort.
type aaaStopperAdapter struct {
	client aaa.Client
}

func (a aaaStopperAdapter) Stop(aaaSessionID string) {
	_ = a.client.Stop(context.Background(), aaaSessionID)
}
