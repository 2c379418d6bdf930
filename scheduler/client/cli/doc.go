/*
Package cli implements the scd command line. The serve command runs a
scheduler from a config (see scheduler/config) and feeds it control
commands read line by line; the remaining commands inspect configs and
encode or decode control frames by hand.
*/
package cli
