// Command gridflow runs the bundled 6-bus study case through the power
// flow and both optimal power flow formulations, printing the solved
// operating points.
package main

import (
	"flag"
	"fmt"
	"log"

	"gridflow/network"
	"gridflow/opf"
	"gridflow/powerflow"
)

func main() {
	method := flag.String("method", "newton", "power flow method: newton, fdpf or dc")
	verbose := flag.Bool("v", false, "per-iteration solver output")
	flag.Parse()

	var m powerflow.Method
	switch *method {
	case "newton":
		m = powerflow.NewtonRaphson
	case "fdpf":
		m = powerflow.FastDecoupled
	case "dc":
		m = powerflow.DC
	default:
		log.Fatalf("unknown method %q", *method)
	}

	c := network.Case6WW()

	pf, err := powerflow.SolvePowerFlow(c, powerflow.Config{Method: m, Verbose: *verbose})
	if err != nil {
		log.Fatalf("power flow: %v", err)
	}
	fmt.Printf("=== %s power flow: %s ===\n", pf.Method, c.Name)
	fmt.Printf("converged=%v iterations=%d mismatch=%.3e\n\n", pf.Converged, pf.Iterations, pf.MaxMismatch)
	printBuses(pf.Case)
	printBranches(pf.Case)

	dc, err := opf.SolveOPF(c, opf.Config{FlowModel: opf.DC, Verbose: *verbose})
	if err != nil {
		log.Fatalf("dc opf: %v", err)
	}
	fmt.Printf("=== DC optimal power flow ===\n")
	fmt.Printf("status=%s iterations=%d cost=%.2f $/h\n\n", dc.Status, dc.Iterations, dc.Objective)
	printDispatch(dc)

	ac, err := opf.SolveOPF(c, opf.Config{Verbose: *verbose})
	if err != nil {
		log.Fatalf("ac opf: %v", err)
	}
	fmt.Printf("=== AC optimal power flow ===\n")
	fmt.Printf("status=%s iterations=%d cost=%.2f $/h\n\n", ac.Status, ac.Iterations, ac.Objective)
	printDispatch(ac)
	printBuses(ac.Case)
}

func printBuses(c *network.Case) {
	fmt.Printf("%4s %8s %8s %10s %10s\n", "bus", "Vm(pu)", "Va(deg)", "Pd(MW)", "Qd(MVAr)")
	for i := range c.Buses {
		b := &c.Buses[i]
		fmt.Printf("%4d %8.4f %8.3f %10.2f %10.2f\n", b.ID, b.Vm, b.Va, b.Pd, b.Qd)
	}
	fmt.Println()
}

func printBranches(c *network.Case) {
	fmt.Printf("%4s %4s %10s %10s %10s %10s\n", "from", "to", "Pf(MW)", "Qf(MVAr)", "Pt(MW)", "Qt(MVAr)")
	for i := range c.Branches {
		br := &c.Branches[i]
		fmt.Printf("%4d %4d %10.2f %10.2f %10.2f %10.2f\n", br.From, br.To, br.Pf, br.Qf, br.Pt, br.Qt)
	}
	fmt.Println()
}

func printDispatch(r *opf.Result) {
	fmt.Printf("%4s %10s %10s %12s\n", "gen", "Pg(MW)", "Qg(MVAr)", "lambda($/MWh)")
	for g := range r.Case.Generators {
		gen := &r.Case.Generators[g]
		lam := 0.0
		for i := range r.Case.Buses {
			if r.Case.Buses[i].ID == gen.Bus {
				lam = r.Prices.LambdaP[i]
			}
		}
		fmt.Printf("%4d %10.2f %10.2f %12.4f\n", g+1, gen.Pg, gen.Qg, lam)
	}
	fmt.Println()
}
