// Package py2i builds container images for Python 3 web applications. py2i
// checks a build context against a fixed recipe (python:3 base, /application
// working directory, dependencies installed from requirements.txt before the
// server package, config package and start.py are copied) and produces a
// ready-to-run image started with `python3 ./start.py`.
package py2i
