package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"

	arrivalsclient "github.com/tktapps/arrivals-client"
	"github.com/tktapps/arrivals-client/credentials/vaultstore"
	"github.com/tktapps/arrivals-client/internal/config"
	"github.com/tktapps/arrivals-client/internal/utils"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		usage()
		return nil
	}

	c := config.New()
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(c.GetLogLevel()).
		With().Timestamp().Logger()

	store, err := vaultstore.Open(c.GetVaultPath(), c.GetVaultPassphrase())
	if err != nil {
		return fmt.Errorf("open credential vault: %w", err)
	}

	client, err := arrivalsclient.New(c.GetBaseURL(), store,
		arrivalsclient.WithTimeout(c.GetTimeout()),
		arrivalsclient.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	ctx := context.Background()

	switch args[0] {
	case "login":
		if len(args) != 4 {
			return fmt.Errorf("usage: tktctl login <mobile> <pin> <tenant>")
		}
		displayBanner()
		creds, err := client.Session.Login(ctx, args[1], args[2], args[3])
		if err != nil {
			return err
		}
		fmt.Printf("Logged in as %s (%s) on campus %s\n",
			creds.User.MobileNumber, creds.User.Role, creds.TenantID)
		if expiry, ok := client.Session.TokenExpiry(); ok {
			fmt.Printf("Session valid until %s\n", expiry.Local().Format(time.RFC1123))
		}
		return nil

	case "logout":
		restore(client)
		client.Session.Logout(ctx)
		fmt.Println("Logged out")
		return nil

	case "mark":
		if len(args) != 2 {
			return fmt.Errorf("usage: tktctl mark <vehicle-number>")
		}
		restore(client)
		visit, err := client.Attendance.MarkArrival(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Marked arrival for %s at %s\n",
			visit.Vehicle.VehicleNumber, visit.ArrivedAt.Format("15:04:05"))
		return nil

	case "report":
		restore(client)
		report, err := client.Reports.GetDaily(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d arrivals (%d cars, %d bikes), %d unmarked of %d registered\n",
			report.Date, report.TotalArrivals, report.TotalCars, report.TotalBikes,
			report.UnmarkedCount, report.TotalRegisteredVehicles)
		return nil

	case "dashboard":
		restore(client)
		var date *string
		if len(args) > 1 {
			date = utils.Ptr(args[1])
		}
		dash, err := client.Reports.GetMultiCampusDashboard(ctx, date)
		if err != nil {
			return err
		}
		for campus, stats := range dash.CampusStats {
			fmt.Printf("%-10s cars=%d bikes=%d total=%d\n",
				campus, stats.CarsCount, stats.BikesCount, stats.TotalCount)
		}
		return nil

	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func restore(client *arrivalsclient.Client) {
	// A missing session is fine here; the next call fails with a typed error
	// telling the user to log in.
	_, _ = client.Session.RestoreSession()
}

func usage() {
	fmt.Println("usage: tktctl <login|logout|mark|report|dashboard> [args]")
}

func displayBanner() {
	myFigure := figure.NewFigure("TKT Arrivals", "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
