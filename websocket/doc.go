// Package websocket implements a minimal RFC6455 server over a raw TCP
// listener.
//
// The server performs the opening handshake itself and speaks only the base
// framing protocol: unfragmented text frames in both directions, ping/pong
// and close. Outbound frames are never masked and never exceed 65515 bytes of
// payload; inbound frames announcing a 64-bit length end the connection.
//
// Each accepted socket is served by its own goroutine. Writes to a client are
// serialized by a per-client mutex, so a broadcast issued from another
// goroutine never interleaves with a pong or close echo.
//
// Basic usage:
//
//	srv, err := websocket.NewServer(websocket.DefaultConfig(), websocket.Deps{Logger: logger})
//	if err != nil {
//		return err
//	}
//	srv.SetMessageHandler(func(id websocket.ClientID, msg []byte) { ... })
//	if err := srv.Start(ctx); err != nil {
//		return err
//	}
//	defer srv.Stop(5 * time.Second)
//	srv.SendToConnectedClients(payload)
package websocket
