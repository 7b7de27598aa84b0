package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	reuseport "github.com/kavu/go_reuseport"
	"github.com/nci/terrain/utils"
	"github.com/nci/terrain/worker/gdalprocess"
	pb "github.com/nci/terrain/worker/gdalservice"
	"google.golang.org/grpc"
)

func main() {
	port := flag.Int("p", 6000, "gRPC server listening port.")
	poolSize := flag.Int("n", 8, "Maximum number of requests handled concurrently.")
	root := flag.String("root", ".", "Directory the served rasters are resolved against.")
	confFile := flag.String("conf", "", "Configuration file (.yaml, .toml or .json)")
	ascii := flag.Bool("ascii", false, "Serve ESRI ASCII grids without GDAL")
	debug := flag.Bool("debug", false, "verbose logging")
	flag.Parse()

	cfg, err := utils.LoadConfig(*confFile)
	if err != nil {
		log.Fatal(err)
	}
	verbose := cfg.Verbose || *debug

	var opener utils.RasterOpener = gdalprocess.Opener{ComputeExtents: cfg.Raster.ComputeExtents}
	if *ascii {
		opener = utils.ASCIIGridOpener{}
	}
	srv := pb.NewRasterServer(*root, opener, *poolSize, verbose)

	s := grpc.NewServer(grpc.MaxSendMsgSize(cfg.Raster.MaxGrpcRecvMsgSize))
	pb.RegisterRasterServiceServer(s, srv)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-signals
		s.GracefulStop()
	}()

	lis, err := reuseport.Listen("tcp", fmt.Sprintf(":%d", *port))
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}
	log.Printf("raster server serving %s on :%d", *root, *port)

	if err := s.Serve(lis); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
	srv.Close()
}
