package main

/*
	Corsgate - An open CORS reverse proxy

	Fetch any URL given in the request path and return the
	response with CORS headers attached, e.g.
	GET http://localhost:8080/https://example.com/api
*/

import (
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"imuslab.com/corsgate/mod/utils"
)

/* SIGTERM handler, do shutdown sequences before closing */
func SetupCloseHandler() {
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-c
		ShutdownSeq()
		os.Exit(0)
	}()
}

func main() {
	//Parse startup flags
	flag.Parse()

	if *showver {
		fmt.Println(SYSTEM_NAME + " - Version " + SYSTEM_VERSION)
		os.Exit(0)
	}

	listeningAddress := net.JoinHostPort(*listenHost, *listenPort)
	if !utils.ValidateListeningAddress(listeningAddress) {
		fmt.Println("Malformed -host / -port paramter: " + listeningAddress)
		os.Exit(1)
	}

	//Startup all modules, see start.go
	startupSequence()
	SetupCloseHandler()

	listener, err := createListener(listeningAddress)
	if err != nil {
		SystemWideLogger.PrintAndLog("proxy", "Unable to listen on "+listeningAddress, err)
		os.Exit(1)
	}

	proxyServer = &http.Server{
		Handler:           corsProxyHandler,
		ReadHeaderTimeout: PROXY_READ_HEADER_TIMEOUT,
	}

	SystemWideLogger.Println(SYSTEM_NAME + " started. Running CORS proxy on " + listeningAddress)
	err = proxyServer.Serve(listener)
	if err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}

	//Shutdown was triggered by the close handler, wait for it to exit the process
	select {}
}
